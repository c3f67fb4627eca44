package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/json"

	"github.com/kvesta/vigil/config"
	"github.com/kvesta/vigil/pkg/engine"
	"github.com/kvesta/vigil/pkg/target"
)

type fileVerdict struct {
	ID      string            `json:"id"`
	Name    string            `json:"name"`
	CVSS    float64           `json:"cvss"`
	Target  target.Target     `json:"target"`
	Outcome *engine.Outcome   `json:"outcome"`
	Facts   map[string]string `json:"facts,omitempty"`
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// getOutputFile resolves --output. "output" stands for output/<date>.json
// in the working directory.
func getOutputFile(ctx context.Context) (string, error) {
	outfile := config.OptionsFrom(ctx).Output
	if outfile == "output" {
		pwd, _ := os.Getwd()
		folder := filepath.Join(pwd, "output")
		if !exists(folder) {
			err := os.MkdirAll(folder, os.FileMode(0755))
			if err != nil {
				return "", err
			}
		}
		nowStamp := time.Now().Format("2006-01-02")
		file := filepath.Join(folder, fmt.Sprintf("%s.json", nowStamp))

		return file, nil
	}

	folder := filepath.Dir(outfile)
	if !exists(folder) {
		err := os.MkdirAll(folder, os.FileMode(0755))
		if err != nil {
			return "", err
		}
	}

	return outfile, nil
}

// VerdictsToJson saves the results when --output is set.
func VerdictsToJson(ctx context.Context, results []*Result) error {
	if config.OptionsFrom(ctx).Output == "" {
		return nil
	}

	filename, err := getOutputFile(ctx)
	if err != nil {
		return errors.Wrap(err, "output file")
	}

	verdicts := make([]fileVerdict, 0, len(results))
	for _, r := range results {
		verdicts = append(verdicts, fileVerdict{
			ID:      r.Entry.ID,
			Name:    r.Entry.Name,
			CVSS:    r.Entry.CVSS,
			Target:  r.Target,
			Outcome: r.Outcome,
			Facts:   r.Facts,
		})
	}

	data, err := json.Marshal(verdicts)
	if err != nil {
		return err
	}
	err = os.WriteFile(filename, data, 0644)
	if err != nil {
		return err
	}

	log.Printf("Output file is saved in: %s", config.Yellow(filename))

	return nil
}
