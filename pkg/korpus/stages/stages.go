// Package stages holds the concrete pipeline stages.
//
// Every stage reads and writes files under the directories of its *stage.Env
// using the <topic>.<logical> naming scheme, and turns expected failures
// (missing inputs, malformed files, failed requests) into a false result after
// logging them with an "err" attribute.
package stages

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cognicore/korpus/pkg/korpus/internalerr"
	"github.com/cognicore/korpus/pkg/korpus/stage"
)

// Registered stage names.
const (
	CorpusSplitName        = "corpus_split"
	FrequencyFilteringName = "frequency_filtering"
	DictionaryCreationName = "dictionary_creation"
	ApplyDictionaryName    = "apply_dictionary"
	TextCleaningName       = "text_cleaning"
	JSONLImportName        = "jsonl_import"
	WikiScrapingName       = "wiki_scraping"
	ConnectSQLName         = "connect_sql"
	SQLExportName          = "sql_export"
	CorpusAnalysisName     = "corpus_analysis"
)

// SQLResource is the Env resource name of the store opened by connect_sql.
const SQLResource = "sql"

// fail logs err at error level and reports failure.
func fail(env *stage.Env, msg string, err error) bool {
	env.Logger.Error(msg, "err", err)
	return false
}

func required(stageName, param, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s: %s is required", internalerr.ErrInvalidConfig, stageName, param)
	}
	return nil
}

func itoa(n int) string { return strconv.Itoa(n) }

func fmtBool(b bool) string { return strconv.FormatBool(b) }
