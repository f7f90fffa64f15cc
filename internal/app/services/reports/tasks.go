package reports

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	apperrors "github.com/EduShopX/edushop/internal/errors"
	"github.com/EduShopX/edushop/internal/tasks"
)

const (
	TaskAvgOrderValue   = "reports.avg_order_value"
	TaskHighSpenderXLSX = "reports.high_spender_excel"

	// DefaultSpenderThreshold applies when the caller names none.
	DefaultSpenderThreshold = 100000

	// ExportFilename is the download name of the spender spreadsheet.
	ExportFilename = "high_spenders.xlsx"
)

// HighSpenderArgs selects users whose successful payments reach Threshold.
type HighSpenderArgs struct {
	Threshold float64 `json:"threshold"`
}

// Outcome is the polled state of a report task. Value is set once the
// task succeeded.
type Outcome struct {
	Status tasks.Status
	Ready  bool
	Value  float64
	Path   string
	Err    string
}

// RegisterTasks binds the report jobs.
func (s *Service) RegisterTasks(registry *tasks.Registry) {
	registry.Register(TaskAvgOrderValue, s.handleAvgOrderValue, tasks.Options{TimeLimit: time.Minute})
	registry.Register(TaskHighSpenderXLSX, s.handleHighSpenders, tasks.Options{TimeLimit: 5 * time.Minute})
}

// StartAvgOrderValue queues the average order value computation.
func (s *Service) StartAvgOrderValue(ctx context.Context) (string, error) {
	return s.queue.Enqueue(ctx, TaskAvgOrderValue, struct{}{})
}

// AvgOrderValue polls a computation started by StartAvgOrderValue.
func (s *Service) AvgOrderValue(ctx context.Context, taskID string) (Outcome, error) {
	res, err := s.taskStatus(ctx, taskID, TaskAvgOrderValue)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Status: res.Status, Ready: res.Status == tasks.StatusSuccess, Err: res.Error}
	if out.Ready {
		if err := res.Decode(&out.Value); err != nil {
			return Outcome{}, fmt.Errorf("decode task %s: %w", taskID, err)
		}
	}
	return out, nil
}

// StartHighSpenderExport queues the spreadsheet export. A non-positive
// threshold uses DefaultSpenderThreshold.
func (s *Service) StartHighSpenderExport(ctx context.Context, threshold float64) (string, error) {
	if threshold <= 0 {
		threshold = DefaultSpenderThreshold
	}
	return s.queue.Enqueue(ctx, TaskHighSpenderXLSX, HighSpenderArgs{Threshold: threshold})
}

// HighSpenderExport polls an export; Path is set once the file exists.
func (s *Service) HighSpenderExport(ctx context.Context, taskID string) (Outcome, error) {
	res, err := s.taskStatus(ctx, taskID, TaskHighSpenderXLSX)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Status: res.Status, Ready: res.Status == tasks.StatusSuccess, Err: res.Error}
	if out.Ready {
		if err := res.Decode(&out.Path); err != nil {
			return Outcome{}, fmt.Errorf("decode task %s: %w", taskID, err)
		}
	}
	return out, nil
}

// taskStatus reads taskID and refuses ids that belong to another task type.
// Unknown ids carry no name and stay PENDING.
func (s *Service) taskStatus(ctx context.Context, taskID, name string) (tasks.Result, error) {
	res, err := s.queue.Status(ctx, taskID)
	if err != nil {
		return tasks.Result{}, err
	}
	if res.Name != "" && res.Name != name {
		return tasks.Result{}, apperrors.NotFound("Task")
	}
	return res, nil
}

// AverageOrderValue is the mean amount of successful payments, 0 when
// there are none.
func (s *Service) AverageOrderValue(ctx context.Context) (float64, error) {
	payments, err := s.successfulPayments(ctx, "")
	if err != nil {
		return 0, err
	}
	if len(payments) == 0 {
		return 0, nil
	}
	var total int64
	for _, p := range payments {
		total += p.Amount
	}
	return float64(total) / float64(len(payments)), nil
}

func (s *Service) handleAvgOrderValue(ctx context.Context, _ *tasks.Task) (interface{}, error) {
	return s.AverageOrderValue(ctx)
}

// Spender is one row of the high spender export.
type Spender struct {
	Email      string
	Username   string
	TotalSpent int64
}

// HighSpenders lists users whose successful payments sum to threshold or
// more, biggest spenders first.
func (s *Service) HighSpenders(ctx context.Context, threshold float64) ([]Spender, error) {
	payments, err := s.successfulPayments(ctx, "")
	if err != nil {
		return nil, err
	}
	spent := make(map[int64]int64)
	for _, p := range payments {
		spent[p.UserID] += p.Amount
	}
	out := make([]Spender, 0)
	for userID, total := range spent {
		if float64(total) < threshold {
			continue
		}
		u, err := s.users.GetUser(ctx, userID)
		if err != nil {
			continue
		}
		out = append(out, Spender{Email: u.Email, Username: u.Username, TotalSpent: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalSpent == out[j].TotalSpent {
			return out[i].Username < out[j].Username
		}
		return out[i].TotalSpent > out[j].TotalSpent
	})
	return out, nil
}

func (s *Service) handleHighSpenders(ctx context.Context, t *tasks.Task) (interface{}, error) {
	var args HighSpenderArgs
	if err := t.Bind(&args); err != nil {
		return nil, fmt.Errorf("%w: %v", tasks.ErrNoRetry, err)
	}
	spenders, err := s.HighSpenders(ctx, args.Threshold)
	if err != nil {
		return nil, err
	}
	t.Progress(ctx, fmt.Sprintf("writing %d rows", len(spenders)))
	path := filepath.Join(s.exportDir, fmt.Sprintf("high_spenders_%s.xlsx", t.ID))
	if err := WriteSpenders(path, spenders); err != nil {
		return nil, err
	}
	s.log.WithContext(ctx).WithField("path", path).WithField("rows", len(spenders)).Info("high spender export written")
	return path, nil
}

// WriteSpenders saves spenders as a single-sheet workbook at path.
func WriteSpenders(path string, spenders []Spender) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	if err := f.SetSheetRow(sheet, "A1", &[]interface{}{"Email", "Username", "Total Spent"}); err != nil {
		return err
	}
	for i, sp := range spenders {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &[]interface{}{sp.Email, sp.Username, sp.TotalSpent}); err != nil {
			return err
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
