package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE missions (
				id VARCHAR(255) PRIMARY KEY,
				label VARCHAR(255) NOT NULL DEFAULT '',
				enabled BOOLEAN NOT NULL DEFAULT true,
				document JSONB NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_missions_enabled ON missions(enabled);

			CREATE TABLE runs (
				id VARCHAR(255) PRIMARY KEY,
				mission_id VARCHAR(255) NOT NULL,
				run_key VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				attempt INT NOT NULL DEFAULT 1,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				document JSONB NOT NULL
			);

			CREATE INDEX idx_runs_mission_started ON runs(mission_id, started_at DESC);
			CREATE INDEX idx_runs_run_key ON runs(run_key);
			CREATE INDEX idx_runs_status ON runs(status);
		`,
	}
}
