package db

// All timestamps are stored as Unix milliseconds; 0 means unset. Foreign-key
// columns hold local surrogate ids and are not enforced by SQLite: the
// retention sweep keeps them consistent.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	internal_id INTEGER NOT NULL UNIQUE,
	login TEXT NOT NULL,
	avatar_url TEXT NOT NULL DEFAULT '',
	html_url TEXT NOT NULL DEFAULT '',
	type TEXT NOT NULL DEFAULT '',
	time_updated INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS repositories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	internal_id INTEGER NOT NULL UNIQUE,
	owner_id INTEGER NOT NULL DEFAULT 0,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	html_url TEXT NOT NULL DEFAULT '',
	default_branch TEXT NOT NULL DEFAULT '',
	private BOOLEAN NOT NULL DEFAULT 0,
	fork BOOLEAN NOT NULL DEFAULT 0,
	archived BOOLEAN NOT NULL DEFAULT 0,
	time_updated INTEGER NOT NULL DEFAULT 0,
	time_pushed INTEGER NOT NULL DEFAULT 0,
	time_last_observed INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS pull_requests (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	internal_id INTEGER NOT NULL UNIQUE,
	number INTEGER NOT NULL,
	repository_id INTEGER NOT NULL DEFAULT 0,
	author_id INTEGER NOT NULL DEFAULT 0,
	title TEXT NOT NULL DEFAULT '',
	body TEXT NOT NULL DEFAULT '',
	state TEXT NOT NULL DEFAULT '',
	html_url TEXT NOT NULL DEFAULT '',
	head_sha TEXT NOT NULL DEFAULT '',
	head_ref TEXT NOT NULL DEFAULT '',
	merged BOOLEAN NOT NULL DEFAULT 0,
	locked BOOLEAN NOT NULL DEFAULT 0,
	draft BOOLEAN NOT NULL DEFAULT 0,
	label_ids TEXT NOT NULL DEFAULT '',
	assignee_ids TEXT NOT NULL DEFAULT '',
	time_created INTEGER NOT NULL DEFAULT 0,
	time_updated INTEGER NOT NULL DEFAULT 0,
	time_merged INTEGER NOT NULL DEFAULT 0,
	time_closed INTEGER NOT NULL DEFAULT 0,
	time_last_observed INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_pull_requests_repository ON pull_requests(repository_id);
CREATE INDEX IF NOT EXISTS idx_pull_requests_head_sha ON pull_requests(head_sha);

CREATE TABLE IF NOT EXISTS issues (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	internal_id INTEGER NOT NULL UNIQUE,
	number INTEGER NOT NULL,
	repository_id INTEGER NOT NULL DEFAULT 0,
	author_id INTEGER NOT NULL DEFAULT 0,
	title TEXT NOT NULL DEFAULT '',
	body TEXT NOT NULL DEFAULT '',
	state TEXT NOT NULL DEFAULT '',
	html_url TEXT NOT NULL DEFAULT '',
	locked BOOLEAN NOT NULL DEFAULT 0,
	label_ids TEXT NOT NULL DEFAULT '',
	assignee_ids TEXT NOT NULL DEFAULT '',
	time_created INTEGER NOT NULL DEFAULT 0,
	time_updated INTEGER NOT NULL DEFAULT 0,
	time_closed INTEGER NOT NULL DEFAULT 0,
	time_last_observed INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_issues_repository ON issues(repository_id);

CREATE TABLE IF NOT EXISTS labels (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	internal_id INTEGER NOT NULL UNIQUE,
	name TEXT NOT NULL,
	color TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	is_default BOOLEAN NOT NULL DEFAULT 0,
	time_updated INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS pull_request_labels (
	pull_request_id INTEGER NOT NULL,
	label_id INTEGER NOT NULL,
	PRIMARY KEY (pull_request_id, label_id)
);

CREATE TABLE IF NOT EXISTS pull_request_assignees (
	pull_request_id INTEGER NOT NULL,
	user_id INTEGER NOT NULL,
	PRIMARY KEY (pull_request_id, user_id)
);

CREATE TABLE IF NOT EXISTS issue_labels (
	issue_id INTEGER NOT NULL,
	label_id INTEGER NOT NULL,
	PRIMARY KEY (issue_id, label_id)
);

CREATE TABLE IF NOT EXISTS issue_assignees (
	issue_id INTEGER NOT NULL,
	user_id INTEGER NOT NULL,
	PRIMARY KEY (issue_id, user_id)
);

CREATE TABLE IF NOT EXISTS reviews (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	internal_id INTEGER NOT NULL UNIQUE,
	pull_request_id INTEGER NOT NULL DEFAULT 0,
	author_id INTEGER NOT NULL DEFAULT 0,
	body TEXT NOT NULL DEFAULT '',
	state TEXT NOT NULL DEFAULT '',
	html_url TEXT NOT NULL DEFAULT '',
	commit_id TEXT NOT NULL DEFAULT '',
	time_submitted INTEGER NOT NULL DEFAULT 0,
	time_last_observed INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_reviews_pull_request ON reviews(pull_request_id);

CREATE TABLE IF NOT EXISTS releases (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	internal_id INTEGER NOT NULL UNIQUE,
	repository_id INTEGER NOT NULL DEFAULT 0,
	tag_name TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL DEFAULT '',
	html_url TEXT NOT NULL DEFAULT '',
	draft BOOLEAN NOT NULL DEFAULT 0,
	prerelease BOOLEAN NOT NULL DEFAULT 0,
	time_created INTEGER NOT NULL DEFAULT 0,
	time_published INTEGER NOT NULL DEFAULT 0,
	time_last_observed INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS check_runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	internal_id INTEGER NOT NULL UNIQUE,
	name TEXT NOT NULL DEFAULT '',
	head_sha TEXT NOT NULL DEFAULT '',
	status_id INTEGER NOT NULL DEFAULT 0,
	conclusion_id INTEGER NOT NULL DEFAULT 0,
	details_url TEXT NOT NULL DEFAULT '',
	html_url TEXT NOT NULL DEFAULT '',
	summary TEXT NOT NULL DEFAULT '',
	time_started INTEGER NOT NULL DEFAULT 0,
	time_completed INTEGER NOT NULL DEFAULT 0,
	time_last_observed INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_check_runs_head_sha ON check_runs(head_sha);

CREATE TABLE IF NOT EXISTS check_suites (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	internal_id INTEGER NOT NULL UNIQUE,
	name TEXT NOT NULL DEFAULT '',
	head_sha TEXT NOT NULL DEFAULT '',
	app_id INTEGER NOT NULL DEFAULT 0,
	status_id INTEGER NOT NULL DEFAULT 0,
	conclusion_id INTEGER NOT NULL DEFAULT 0,
	html_url TEXT NOT NULL DEFAULT '',
	time_created INTEGER NOT NULL DEFAULT 0,
	time_updated INTEGER NOT NULL DEFAULT 0,
	time_last_observed INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_check_suites_head_sha ON check_suites(head_sha);

CREATE TABLE IF NOT EXISTS commit_combined_statuses (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	head_sha TEXT NOT NULL UNIQUE,
	state_id INTEGER NOT NULL DEFAULT 0,
	total_count INTEGER NOT NULL DEFAULT 0,
	time_last_observed INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS pull_request_statuses (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	pull_request_id INTEGER NOT NULL,
	head_sha TEXT NOT NULL DEFAULT '',
	status_id INTEGER NOT NULL DEFAULT 0,
	conclusion_id INTEGER NOT NULL DEFAULT 0,
	state_id INTEGER NOT NULL DEFAULT 0,
	failed BOOLEAN NOT NULL DEFAULT 0,
	succeeded BOOLEAN NOT NULL DEFAULT 0,
	details_url TEXT NOT NULL DEFAULT '',
	result TEXT NOT NULL DEFAULT '',
	time_occurred INTEGER NOT NULL DEFAULT 0,
	time_created INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_pull_request_statuses_pull_request ON pull_request_statuses(pull_request_id);

CREATE TABLE IF NOT EXISTS notifications (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	type_id INTEGER NOT NULL,
	user_id INTEGER NOT NULL DEFAULT 0,
	repository_id INTEGER NOT NULL DEFAULT 0,
	identifier TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	details_url TEXT NOT NULL DEFAULT '',
	html_url TEXT NOT NULL DEFAULT '',
	result TEXT NOT NULL DEFAULT '',
	toasted BOOLEAN NOT NULL DEFAULT 0,
	time_occurred INTEGER NOT NULL DEFAULT 0,
	time_created INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_notifications_group ON notifications(type_id, repository_id, identifier, user_id);

CREATE TABLE IF NOT EXISTS searches (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	query TEXT NOT NULL,
	repository_id INTEGER NOT NULL DEFAULT 0,
	time_updated INTEGER NOT NULL DEFAULT 0,
	UNIQUE(query, repository_id)
);

CREATE TABLE IF NOT EXISTS search_issues (
	search_id INTEGER NOT NULL,
	issue_id INTEGER NOT NULL,
	time_updated INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (search_id, issue_id)
);

CREATE TABLE IF NOT EXISTS metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL DEFAULT ''
);
`
