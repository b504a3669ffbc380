// Package sqlinline holds every SQL statement the service executes. Each
// statement carries a --sql <uuid> audit marker checked by tools/sqllint.
package sqlinline

const QEnsureSessionSchema = `--sql e88dec70-8d35-45bb-a6a1-0bb9db28dfea
CREATE TABLE IF NOT EXISTS user_sessions (
    user_id    TEXT PRIMARY KEY,
    payload    JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

const QSelectSession = `--sql f49e01e1-e614-4846-b02d-6d48d5d177f8
SELECT payload
FROM user_sessions
WHERE user_id = $1;
`

const QUpsertSession = `--sql 9ce7385a-6322-495c-8ff5-5947776c7a6b
INSERT INTO user_sessions (user_id, payload, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO UPDATE
SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at;
`
