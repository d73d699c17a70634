package appfs

import "embed"

// FS holds the database migrations and the assets (email templates, common passwords list).
//
//go:embed migrations/*.sql assets/templates/email/* assets/common-passwords.txt.gz
var FS embed.FS

const (
	MigrationsDir     = "migrations"
	EmailTemplatesDir = "assets/templates/email"
	CommonPasswordsGz = "assets/common-passwords.txt.gz"
)
