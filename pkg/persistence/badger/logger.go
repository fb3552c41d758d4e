package badger

import (
	"fmt"
	"strings"

	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

// journalLogger routes badger's printf-style logging into zap. Badger's info
// output (compactions, value log GC) is demoted to debug so it stays out of
// audit-oriented production logs.
type journalLogger struct {
	logger *zap.SugaredLogger
}

var _ badgerdb.Logger = (*journalLogger)(nil)

func newJournalLogger(l *zap.Logger) *journalLogger {
	return &journalLogger{logger: l.Sugar().With("component", "badger_journal")}
}

func (j *journalLogger) Errorf(format string, args ...interface{}) {
	j.logger.Error(message(format, args))
}

func (j *journalLogger) Warningf(format string, args ...interface{}) {
	j.logger.Warn(message(format, args))
}

func (j *journalLogger) Infof(format string, args ...interface{}) {
	j.logger.Debug(message(format, args))
}

func (j *journalLogger) Debugf(format string, args ...interface{}) {
	j.logger.Debug(message(format, args))
}

func message(format string, args []interface{}) string {
	return strings.TrimRight(fmt.Sprintf(format, args...), "\n")
}
