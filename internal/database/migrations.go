package database

// migrations is an ordered list of SQL migration groups. Each entry is a slice
// of SQL statements that are executed together in a single transaction. The
// version number is the 1-based index into this slice.
var migrations = [][]string{
	// Migration 1: all core tables
	{
		`CREATE TABLE object_types (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			internal_name TEXT NOT NULL,
			label TEXT NOT NULL,
			plural_label TEXT,
			record_prefix TEXT NOT NULL,
			display_property TEXT,
			is_system BOOLEAN NOT NULL DEFAULT FALSE,
			features TEXT NOT NULL DEFAULT '{}',
			searchable_properties TEXT,
			allowed_associations TEXT,
			next_record_num INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE (tenant_id, internal_name)
		)`,

		`CREATE TABLE property_definitions (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			object_type_id TEXT,
			name TEXT NOT NULL,
			label TEXT NOT NULL,
			data_type TEXT NOT NULL,
			is_required BOOLEAN NOT NULL DEFAULT FALSE,
			is_unique BOOLEAN NOT NULL DEFAULT FALSE,
			options TEXT,
			referenced_type TEXT,
			validation_rules TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY (object_type_id) REFERENCES object_types(id)
		)`,
		// Property names are unique within their scope: per type, or per
		// tenant for global definitions.
		`CREATE UNIQUE INDEX idx_propdef_scoped ON property_definitions(tenant_id, object_type_id, name)
			WHERE object_type_id IS NOT NULL`,
		`CREATE UNIQUE INDEX idx_propdef_global ON property_definitions(tenant_id, name)
			WHERE object_type_id IS NULL`,

		`CREATE TABLE objects (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tenant_id TEXT NOT NULL,
			object_id TEXT NOT NULL,
			object_type_id TEXT NOT NULL,
			name TEXT,
			owner_id TEXT,
			status TEXT NOT NULL DEFAULT 'active',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			archived_at TEXT,
			deleted_at TEXT,
			UNIQUE (tenant_id, object_id),
			FOREIGN KEY (object_type_id) REFERENCES object_types(id)
		)`,
		`CREATE INDEX idx_objects_type ON objects(tenant_id, object_type_id, status)`,

		// One row per (object, property definition), exactly one typed slot
		// populated according to the definition's data type. value_ref holds
		// the public object_id of the referenced record.
		`CREATE TABLE property_values (
			object_id INTEGER NOT NULL,
			property_definition_id TEXT NOT NULL,
			value_text TEXT,
			value_number REAL,
			value_bool BOOLEAN,
			value_date TEXT,
			value_json TEXT,
			value_ref TEXT,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (object_id, property_definition_id),
			FOREIGN KEY (object_id) REFERENCES objects(id),
			FOREIGN KEY (property_definition_id) REFERENCES property_definitions(id),
			CHECK (
				(value_text IS NOT NULL) + (value_number IS NOT NULL) +
				(value_bool IS NOT NULL) + (value_date IS NOT NULL) +
				(value_json IS NOT NULL) + (value_ref IS NOT NULL) <= 1
			)
		)`,
		`CREATE INDEX idx_property_values_def ON property_values(property_definition_id)`,

		// Weak references by public object_id: no foreign keys, so deleted
		// records keep their rows until the records detach. The rowid doubles
		// as insertion order for traversal.
		`CREATE TABLE relationships (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tenant_id TEXT NOT NULL,
			source_id TEXT NOT NULL,
			target_id TEXT NOT NULL,
			name TEXT NOT NULL,
			inverse_name TEXT,
			created_at TEXT NOT NULL,
			UNIQUE (tenant_id, source_id, target_id, name)
		)`,
		`CREATE INDEX idx_rel_source ON relationships(tenant_id, source_id, name, id)`,
		`CREATE INDEX idx_rel_target ON relationships(tenant_id, target_id, inverse_name)`,

		`CREATE TABLE pipelines (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			name TEXT NOT NULL,
			label TEXT NOT NULL,
			object_type TEXT NOT NULL,
			enforce_skip_gates BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE (tenant_id, name)
		)`,

		`CREATE TABLE pipeline_stages (
			id TEXT PRIMARY KEY,
			pipeline_id TEXT NOT NULL,
			name TEXT NOT NULL,
			label TEXT NOT NULL,
			position INTEGER NOT NULL,
			probability REAL NOT NULL DEFAULT 0,
			stage_type TEXT NOT NULL DEFAULT 'open',
			required_fields TEXT,
			target_days INTEGER NOT NULL DEFAULT 0,
			max_days INTEGER NOT NULL DEFAULT 0,
			UNIQUE (pipeline_id, name),
			UNIQUE (pipeline_id, position),
			FOREIGN KEY (pipeline_id) REFERENCES pipelines(id)
		)`,

		// Append-only. The autoincrement id is the pagination cursor and the
		// total per-object order.
		`CREATE TABLE activity_entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tenant_id TEXT NOT NULL,
			object_id TEXT NOT NULL,
			object_type TEXT NOT NULL,
			activity_type TEXT NOT NULL,
			changes TEXT,
			reason TEXT,
			actor_id TEXT,
			automation_id TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX idx_activity_object ON activity_entries(tenant_id, object_id, id)`,

		`CREATE TABLE workflow_triggers (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			name TEXT,
			object_type TEXT NOT NULL,
			property TEXT NOT NULL,
			trigger_on TEXT NOT NULL,
			trigger_value TEXT,
			actions TEXT NOT NULL,
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX idx_triggers_match ON workflow_triggers(tenant_id, object_type, property)`,

		`CREATE TABLE workflow_runs (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			trigger_id TEXT NOT NULL,
			object_id TEXT NOT NULL,
			activity_id INTEGER NOT NULL,
			action TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			attempts INTEGER NOT NULL DEFAULT 0,
			error TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX idx_runs_trigger ON workflow_runs(trigger_id, created_at)`,
	},
}
