package bookmarks

import (
	"fmt"
	"io"
	"os"
)

// Reporter 把人类可读的状态/警告输出从核心逻辑里抽出来，
// CLI 给它 stdout/stderr，测试给它 bytes.Buffer。
type Reporter struct {
	status io.Writer
	warn   io.Writer
}

func NewReporter(status, warn io.Writer) *Reporter {
	return &Reporter{status: status, warn: warn}
}

// DefaultReporter 输出到标准流
func DefaultReporter() *Reporter {
	return &Reporter{status: os.Stdout, warn: os.Stderr}
}

func (r *Reporter) Statusf(format string, args ...any) {
	fmt.Fprintf(r.status, format, args...)
}

func (r *Reporter) Warnf(format string, args ...any) {
	fmt.Fprintf(r.warn, format, args...)
}
