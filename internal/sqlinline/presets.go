package sqlinline

const QEnsurePresetSchema = `--sql 3879fb66-5694-4907-b330-76150f79b94b
CREATE TABLE IF NOT EXISTS user_presets (
    user_id      TEXT NOT NULL,
    preset_id    TEXT NOT NULL,
    name         TEXT NOT NULL DEFAULT '',
    spec         JSONB NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    last_used_at TIMESTAMPTZ,
    PRIMARY KEY (user_id, preset_id)
);
`

const QInsertPreset = `--sql 141371cc-a64e-4ac6-8b92-5758ee697c7c
INSERT INTO user_presets (user_id, preset_id, name, spec, created_at)
VALUES ($1, $2, $3, $4, $5);
`

const QListPresets = `--sql 7515635c-3d49-41b7-ad47-dfb0bf5b29af
SELECT preset_id, name, created_at, last_used_at
FROM user_presets
WHERE user_id = $1
ORDER BY created_at;
`

const QSelectPreset = `--sql 9798b91c-93b1-4ccb-bdbc-2163ffc7147c
SELECT preset_id, name, spec, created_at, last_used_at
FROM user_presets
WHERE user_id = $1 AND preset_id = $2;
`

const QDeletePreset = `--sql 8ca1b4d7-ce2d-407e-829e-64085ae0b5b3
DELETE FROM user_presets
WHERE user_id = $1 AND preset_id = $2;
`

const QTouchPreset = `--sql 42c2cc70-83f2-4af6-a1f7-8e83895f0bc7
UPDATE user_presets
SET last_used_at = $3
WHERE user_id = $1 AND preset_id = $2;
`
