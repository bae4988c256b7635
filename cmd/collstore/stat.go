package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/spf13/cobra"

	_ "github.com/cuemby/collstore/internal/metrics"
)

var statCmd = &cobra.Command{
	Use:   "stat",
	Short: "Print consumed-capacity and retry counters for wide-column connections",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		families, err := prometheus.DefaultGatherer.Gather()
		if err != nil {
			return err
		}
		for _, fam := range families {
			if !strings.HasPrefix(fam.GetName(), "collstore_") {
				continue
			}
			for _, m := range fam.GetMetric() {
				fmt.Printf("%s%s = %s\n", fam.GetName(), labelString(m), metricValue(fam, m))
			}
		}
		return nil
	},
}

func labelString(m *dto.Metric) string {
	if len(m.GetLabel()) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		pairs = append(pairs, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
	}
	sort.Strings(pairs)
	return "{" + strings.Join(pairs, ",") + "}"
}

func metricValue(fam *dto.MetricFamily, m *dto.Metric) string {
	switch fam.GetType() {
	case dto.MetricType_COUNTER:
		return fmt.Sprintf("%g", m.GetCounter().GetValue())
	case dto.MetricType_HISTOGRAM:
		h := m.GetHistogram()
		return fmt.Sprintf("count=%d sum=%g", h.GetSampleCount(), h.GetSampleSum())
	default:
		return fmt.Sprintf("%g", m.GetGauge().GetValue())
	}
}
