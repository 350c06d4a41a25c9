// Package sqlguard turns free-text candidate SQL from a model into a
// confirmed single read statement over the permitted tables.
//
// This is allow-by-structure and deny-by-keyword, not a parser. It is a
// weaker guarantee than the plan compiler and relies on execution being
// confined to a read-only, time-boxed transaction.
package sqlguard

import (
	"regexp"
	"strings"

	"vidstats/internal/catalog"
	"vidstats/internal/domain"
)

var (
	thinkRe  = regexp.MustCompile(`(?is)<think>.*?</think>`)
	fenceRe  = regexp.MustCompile("(?is)```(?:sql)?\\s*(.*?)```")
	selectRe = regexp.MustCompile(`(?i)\bselect\b`)
	leadRe   = regexp.MustCompile(`(?i)^select\b`)

	forbiddenKeywordRe = regexp.MustCompile(
		`(?i)\b(insert|update|delete|drop|alter|truncate|create|grant|revoke|copy|call|do|vacuum|analyze|comment)\b`)

	// SELECT ... INTO creates a table.
	selectIntoRe = regexp.MustCompile(`(?i)\binto\b`)

	dangerousFunctionRe = regexp.MustCompile(`(?i)\b(` + strings.Join(dangerousFunctions, "|") + `)\s*\(`)

	// Any pg_* call is server introspection or administration.
	systemFunctionRe = regexp.MustCompile(`(?i)\b(pg_\w*)\s*\(`)
	systemSchemaRe   = regexp.MustCompile(`(?i)\b(pg_catalog|information_schema)\s*\.`)

	allowedTableRe = regexp.MustCompile(`(?i)\b(` + strings.Join(catalog.TableNames(), "|") + `)\b`)
)

// dangerousFunctions can read the server filesystem, stall a backend, or
// reach outside the session.
var dangerousFunctions = []string{
	"pg_sleep",
	"pg_sleep_for",
	"pg_sleep_until",
	"pg_read_file",
	"pg_read_binary_file",
	"pg_ls_dir",
	"pg_stat_file",
	"lo_import",
	"lo_export",
	"dblink",
	"dblink_exec",
	"set_config",
	"current_setting",
	"pg_terminate_backend",
	"pg_cancel_backend",
	"pg_advisory_lock",
	"pg_reload_conf",
}

// Extract pulls the candidate statement out of model output: it strips
// reasoning blocks and markdown fences, discards prose before the first
// SELECT, and cuts at the first statement terminator.
func Extract(text string) string {
	cleaned := thinkRe.ReplaceAllString(text, "")
	if m := fenceRe.FindStringSubmatch(cleaned); m != nil {
		cleaned = m[1]
	}
	cleaned = strings.TrimSpace(cleaned)
	if loc := selectRe.FindStringIndex(cleaned); loc != nil && loc[0] > 0 {
		cleaned = cleaned[loc[0]:]
	}
	if i := strings.IndexByte(cleaned, ';'); i >= 0 {
		cleaned = cleaned[:i]
	}
	return strings.TrimSpace(cleaned)
}

// Validate checks candidate SQL against the safety rules and returns it as
// a CompiledQuery with no bound parameters. Validate is idempotent on its
// own output.
func Validate(text string) (domain.CompiledQuery, error) {
	candidate := strings.TrimSpace(text)
	if candidate == "" {
		return domain.CompiledQuery{}, domain.ErrSQLSafety("empty SQL")
	}
	if strings.HasSuffix(candidate, ";") {
		candidate = strings.TrimSpace(strings.TrimSuffix(candidate, ";"))
	}

	if !leadRe.MatchString(candidate) {
		return domain.CompiledQuery{}, domain.ErrSQLSafety("only SELECT is allowed")
	}
	if m := forbiddenKeywordRe.FindString(candidate); m != "" {
		return domain.CompiledQuery{}, domain.ErrSQLSafety("forbidden keyword detected: %s", strings.ToUpper(m))
	}
	if strings.Contains(candidate, "--") || strings.Contains(candidate, "/*") || strings.Contains(candidate, "*/") {
		return domain.CompiledQuery{}, domain.ErrSQLSafety("SQL comments are not allowed")
	}
	if strings.Contains(candidate, ";") {
		return domain.CompiledQuery{}, domain.ErrSQLSafety("multiple statements are not allowed")
	}
	if selectIntoRe.MatchString(candidate) {
		return domain.CompiledQuery{}, domain.ErrSQLSafety("SELECT INTO is not allowed")
	}
	if m := dangerousFunctionRe.FindStringSubmatch(candidate); m != nil {
		return domain.CompiledQuery{}, domain.ErrSQLSafety("prohibited function: %s", strings.ToLower(m[1]))
	}
	if m := systemFunctionRe.FindStringSubmatch(candidate); m != nil {
		return domain.CompiledQuery{}, domain.ErrSQLSafety("prohibited function: %s", strings.ToLower(m[1]))
	}
	if m := systemSchemaRe.FindStringSubmatch(candidate); m != nil {
		return domain.CompiledQuery{}, domain.ErrSQLSafety("system catalog %s is not allowed", strings.ToLower(m[1]))
	}
	if !allowedTableRe.MatchString(candidate) {
		return domain.CompiledQuery{}, domain.ErrSQLSafety("only tables %s can be used", strings.Join(catalog.TableNames(), ", "))
	}

	return domain.CompiledQuery{SQL: candidate, Args: []any{}}, nil
}
