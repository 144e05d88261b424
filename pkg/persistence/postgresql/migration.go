package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE executions (
				id VARCHAR(255) PRIMARY KEY,
				canvas_path TEXT NOT NULL,
				anchor_id VARCHAR(255) NOT NULL,
				mode VARCHAR(50) NOT NULL,
				status VARCHAR(50) NOT NULL,
				script_ids JSONB NOT NULL DEFAULT '[]',
				failed_script_id VARCHAR(255),
				error_message TEXT,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				finished_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_executions_canvas_path ON executions(canvas_path);
			CREATE INDEX idx_executions_status ON executions(status);
			CREATE INDEX idx_executions_started_at ON executions(started_at);
		`,
	}
}
