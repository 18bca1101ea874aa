package metrics

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// textFormat is the Prometheus text exposition format.
var textFormat = expfmt.NewFormat(expfmt.TypeTextPlain)

// WriteText encodes metric families in the text exposition format.
func WriteText(w io.Writer, families []*dto.MetricFamily) error {
	enc := expfmt.NewEncoder(w, textFormat)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	if closer, ok := enc.(expfmt.Closer); ok {
		return closer.Close()
	}
	return nil
}

// WriteFile gathers the registry and replaces path atomically, so a
// textfile collector never reads a partial file.
func (c *Collector) WriteFile(path string) error {
	families, err := c.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create metrics file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteText(tmp, families); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod metrics file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close metrics file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename metrics file: %w", err)
	}
	return nil
}
