package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE agents (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				prompt TEXT NOT NULL DEFAULT '',
				description TEXT NOT NULL DEFAULT '',
				structured_instructions JSONB,
				is_public BOOLEAN NOT NULL DEFAULT false,
				user_id VARCHAR(255) NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_agents_user_id ON agents(user_id);

			CREATE TABLE agent_executions (
				id UUID PRIMARY KEY,
				agent_id UUID NOT NULL,
				user_id VARCHAR(255),
				trigger_id VARCHAR(255),
				trigger_type VARCHAR(50),
				initial_context JSONB,
				state VARCHAR(50) NOT NULL CHECK (state IN ('pending', 'running', 'completed', 'failed', 'cancelled')),
				final_outputs JSONB,
				error_message TEXT,
				error_details JSONB,
				started_at TIMESTAMP WITH TIME ZONE,
				completed_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_agent_executions_agent_id ON agent_executions(agent_id);
			CREATE INDEX idx_agent_executions_state ON agent_executions(state);
			CREATE INDEX idx_agent_executions_created_at ON agent_executions(created_at);

			CREATE TABLE agent_execution_logs (
				id UUID PRIMARY KEY,
				execution_id UUID NOT NULL,
				node_id VARCHAR(255),
				step_number INT,
				log_type VARCHAR(50) NOT NULL,
				content JSONB,
				timestamp TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_agent_execution_logs_execution_id ON agent_execution_logs(execution_id);
			CREATE INDEX idx_agent_execution_logs_timestamp ON agent_execution_logs(timestamp);
		`,
	}
}
