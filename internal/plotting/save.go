package plotting

import (
	"bufio"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
)

// Size is the edge length of saved figures.
const Size = 15 * vg.Inch

// RunDir returns root/<date>/<time> for t.
func RunDir(root string, t time.Time) string {
	return filepath.Join(root, t.Format("2006-Jan-02"), t.Format("15:04:05"))
}

// Save writes p as name.png, name.svg and name.pdf in dir, creating dir.
func Save(p *plot.Plot, dir, name string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, name)
	for _, ext := range []string{".png", ".svg", ".pdf"} {
		if err := p.Save(Size, Size, path+ext); err != nil {
			return err
		}
	}
	return nil
}

// WriteLog writes lines to dir/log.txt.
func WriteLog(dir string, lines []string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	txt, err := os.Create(filepath.Join(dir, "log.txt"))
	if err != nil {
		return err
	}
	defer txt.Close()

	w := bufio.NewWriter(txt)
	for _, line := range lines {
		if _, err := w.WriteString(line); err != nil {
			return err
		}
	}
	return w.Flush()
}
