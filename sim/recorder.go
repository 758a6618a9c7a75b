package sim

import (
	"fmt"
	"log/slog"
	"os"
	"path"

	"github.com/xuri/excelize/v2"
	"github.com/zeu5/platformer-rl/types"
	"github.com/zeu5/platformer-rl/util"
)

const (
	CompletionTimesFile = "completion_times.txt"
	EpisodeLogFile      = "episode_log.csv"
)

// LogRecorder appends every episode to episode_log.csv and the completion
// time of every exit reached by the agent to completion_times.txt. The
// completion times start empty for every recorder while the episode log
// keeps growing across runs.
type LogRecorder struct {
	dir    string
	logger *slog.Logger
}

var _ EpisodeObserver = &LogRecorder{}

func NewLogRecorder(dir string, logger *slog.Logger) (*LogRecorder, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	if err := os.Truncate(path.Join(dir, CompletionTimesFile), 0); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	csvPath := path.Join(dir, EpisodeLogFile)
	if _, err := os.Stat(csvPath); os.IsNotExist(err) {
		if err := util.AppendToFile(csvPath, types.EpisodeCSVHeader); err != nil {
			return nil, err
		}
	}
	return &LogRecorder{dir: dir, logger: logger}, nil
}

func (l *LogRecorder) OnEpisode(rec types.EpisodeRecord) {
	if rec.Completed() && rec.AIControl {
		line := fmt.Sprintf("%d,%.4f", rec.Episode, rec.Time)
		if err := util.AppendToFile(path.Join(l.dir, CompletionTimesFile), line); err != nil {
			l.logger.Warn("appending completion time", "error", err)
		}
	}
	if err := util.AppendToFile(path.Join(l.dir, EpisodeLogFile), rec.CSV()); err != nil {
		l.logger.Warn("appending episode log", "error", err)
	}
}

const episodeSheet = "Episodes"

// WorkbookRecorder collects the episodes in a spreadsheet that is written
// when the recorder is closed
type WorkbookRecorder struct {
	path   string
	file   *excelize.File
	row    int
	logger *slog.Logger
}

var _ EpisodeObserver = &WorkbookRecorder{}

func NewWorkbookRecorder(path string, logger *slog.Logger) *WorkbookRecorder {
	f := excelize.NewFile()
	if _, err := f.NewSheet(episodeSheet); err != nil {
		logger.Warn("creating episode sheet", "error", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		logger.Warn("removing default sheet", "error", err)
	}
	headers := []string{"Episode", "Time (s)", "Reward", "Episode reward", "Epsilon", "Steps", "Reason", "Layout", "AI control"}
	if err := f.SetSheetRow(episodeSheet, "A1", &headers); err != nil {
		logger.Warn("writing workbook header", "error", err)
	}
	return &WorkbookRecorder{
		path:   path,
		file:   f,
		row:    2,
		logger: logger,
	}
}

func (w *WorkbookRecorder) OnEpisode(rec types.EpisodeRecord) {
	row := []interface{}{rec.Episode, rec.Time, rec.Reward, rec.EpisodeReward, rec.Epsilon, rec.Steps, string(rec.Reason), rec.Layout, rec.AIControl}
	cell := fmt.Sprintf("A%d", w.row)
	if err := w.file.SetSheetRow(episodeSheet, cell, &row); err != nil {
		w.logger.Warn("writing workbook row", "cell", cell, "error", err)
		return
	}
	w.row += 1
}

// Rows is the number of episodes recorded so far
func (w *WorkbookRecorder) Rows() int {
	return w.row - 2
}

// Close writes the workbook
func (w *WorkbookRecorder) Close() error {
	defer w.file.Close()
	if err := os.MkdirAll(path.Dir(w.path), 0755); err != nil {
		return err
	}
	return w.file.SaveAs(w.path)
}
