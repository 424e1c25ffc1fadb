package session

import (
	"github.com/VictoriaMetrics/metrics"
)

var (
	readsTotal        = metrics.NewCounter(`dlayer_session_reads_total`)
	writesTotal       = metrics.NewCounter(`dlayer_session_writes_total`)
	erasesTotal       = metrics.NewCounter(`dlayer_session_erases_total`)
	commitsTotal      = metrics.NewCounter(`dlayer_session_commits_total`)
	undosTotal        = metrics.NewCounter(`dlayer_session_undos_total`)
	squashesTotal     = metrics.NewCounter(`dlayer_session_squashes_total`)
	pushesTotal       = metrics.NewCounter(`dlayer_undostack_pushes_total`)
	rootFlushesTotal  = metrics.NewCounter(`dlayer_root_flushes_total`)
	rootFlushedTotal  = metrics.NewCounter(`dlayer_root_flushed_entries_total`)
	rootFailuresTotal = metrics.NewCounter(`dlayer_root_flush_failures_total`)
	commitEntries     = metrics.NewHistogram(`dlayer_commit_entries`)
)
