package version

import "fmt"

const service = "infopharma-ledger"

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Info returns the raw version fields populated via -ldflags.
func Info() (v, c, d string) { return version, commit, date }

// String собирает строку версии для health-эндпоинта и стартовых логов.
func String() string {
	return fmt.Sprintf("%s version=%s commit=%s date=%s", service, version, commit, date)
}
