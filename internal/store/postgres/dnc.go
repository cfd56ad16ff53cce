package postgres

import "github.com/surveypulse/dialer-core/internal/domain"

// IsBlocked checks the do-not-contact list directly against Postgres. In
// the running server this path sits behind internal/dnc's Redis cache;
// pgTx implements it too so a direct DB-backed check is available to
// anything that runs outside the cache's warm path (e.g. backfills).
func (tx *pgTx) IsBlocked(ctx domain.Context, msisdn string) (bool, error) {
	ctx, end := dbSpan(ctx, "dnc.IsBlocked", "dnc_entries")
	defer end()

	q := `SELECT EXISTS(SELECT 1 FROM dnc_entries WHERE msisdn = $1)`
	var blocked bool
	if err := tx.tx.QueryRow(ctx, q, msisdn).Scan(&blocked); err != nil {
		return false, mapErr("dnc.is_blocked", err)
	}
	return blocked, nil
}
