package postgresql

// migrations returns the versioned schema for the workflow engine.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflow_definitions (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				trigger_type TEXT NOT NULL,
				trigger_config JSONB NOT NULL DEFAULT '{}',
				steps JSONB NOT NULL DEFAULT '[]',
				status TEXT NOT NULL DEFAULT 'active',
				run_count INTEGER NOT NULL DEFAULT 0,
				owner TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_definitions_trigger
				ON workflow_definitions (trigger_type, status);

			CREATE TABLE IF NOT EXISTS workflow_instances (
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL REFERENCES workflow_definitions (id),
				status TEXT NOT NULL DEFAULT 'active',
				current_step_id TEXT NOT NULL DEFAULT '',
				document_id TEXT NOT NULL DEFAULT '',
				document_name TEXT NOT NULL DEFAULT '',
				priority TEXT NOT NULL DEFAULT '',
				started_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				started_by TEXT NOT NULL DEFAULT '',
				completed_at TIMESTAMP WITH TIME ZONE,
				metadata JSONB NOT NULL DEFAULT '{}',
				escalation_count INTEGER NOT NULL DEFAULT 0
			);

			CREATE INDEX IF NOT EXISTS idx_instances_workflow
				ON workflow_instances (workflow_id, started_at DESC);

			CREATE TABLE IF NOT EXISTS step_instances (
				id TEXT PRIMARY KEY,
				instance_id TEXT NOT NULL REFERENCES workflow_instances (id),
				step_id TEXT NOT NULL,
				step_index INTEGER NOT NULL DEFAULT 0,
				name TEXT NOT NULL DEFAULT '',
				type TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'pending',
				assignee TEXT NOT NULL DEFAULT '',
				sla_due_at TIMESTAMP WITH TIME ZONE,
				is_overdue BOOLEAN NOT NULL DEFAULT FALSE,
				escalation_level INTEGER NOT NULL DEFAULT 0,
				decision TEXT NOT NULL DEFAULT '',
				comments TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				completed_at TIMESTAMP WITH TIME ZONE,
				completed_by TEXT NOT NULL DEFAULT '',
				metadata JSONB NOT NULL DEFAULT '{}'
			);

			CREATE INDEX IF NOT EXISTS idx_steps_instance
				ON step_instances (instance_id, step_index);

			CREATE INDEX IF NOT EXISTS idx_steps_active
				ON step_instances (status)
				WHERE status IN ('pending', 'in_progress');

			CREATE TABLE IF NOT EXISTS escalation_rules (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				is_global BOOLEAN NOT NULL DEFAULT FALSE,
				workflow_id TEXT NOT NULL DEFAULT '',
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				conditions JSONB NOT NULL DEFAULT '[]',
				actions JSONB NOT NULL DEFAULT '[]',
				trigger_after_minutes INTEGER,
				trigger_after_hours INTEGER NOT NULL DEFAULT 0,
				repeat_every_minutes INTEGER,
				repeat_every_hours INTEGER,
				max_escalations INTEGER NOT NULL DEFAULT 3,
				trigger_count INTEGER NOT NULL DEFAULT 0,
				last_triggered_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_rules_scope
				ON escalation_rules (is_active, is_global, workflow_id);

			CREATE TABLE IF NOT EXISTS escalation_history (
				id TEXT PRIMARY KEY,
				rule_id TEXT NOT NULL,
				instance_id TEXT NOT NULL,
				step_instance_id TEXT NOT NULL,
				triggered_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				actions_taken JSONB NOT NULL DEFAULT '[]',
				escalation_level INTEGER NOT NULL DEFAULT 0
			);

			CREATE INDEX IF NOT EXISTS idx_history_rule_step
				ON escalation_history (rule_id, step_instance_id, triggered_at DESC);

			CREATE TABLE IF NOT EXISTS documents (
				id TEXT PRIMARY KEY,
				type TEXT NOT NULL DEFAULT '',
				name TEXT NOT NULL DEFAULT '',
				uploaded_by TEXT NOT NULL DEFAULT '',
				extracted_data JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);
		`,
	}
}
