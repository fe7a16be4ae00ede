package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	previewSourceTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flier",
			Subsystem: "preview",
			Name:      "documents_total",
			Help:      "预览页按文档来源统计的渲染次数。",
		},
		[]string{"source"},
	)

	editorActionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flier",
			Subsystem: "editor",
			Name:      "actions_total",
			Help:      "编辑器操作次数（按结果区分）。",
		},
		[]string{"action", "outcome"},
	)
)

// ObservePreviewSource counts a preview rendered from the named source.
func ObservePreviewSource(source string) {
	previewSourceTotal.WithLabelValues(source).Inc()
}

// ObserveEditorAction counts an editor action; outcome is "ok" or "error".
func ObserveEditorAction(action, outcome string) {
	editorActionTotal.WithLabelValues(action, outcome).Inc()
}
