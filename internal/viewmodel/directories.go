package viewmodel

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type DirectorySyncer interface {
	SyncFromServer(ctx context.Context, token string) (int, error)
	Count(ctx context.Context) (int64, error)
	LastUpdated(ctx context.Context) (*string, error)
}

// Directory names one synced reference table
type Directory struct {
	Name string
	Repo DirectorySyncer
}

type SyncResult struct {
	Directory string `json:"directory"`
	Rows      int    `json:"rows"`
	Error     string `json:"error,omitempty"`
}

type SyncReport struct {
	Results []SyncResult `json:"results"`
	Failed  int          `json:"failed"`
}

type DirectoryStats struct {
	Directory   string  `json:"directory"`
	Count       int64   `json:"count"`
	LastUpdated *string `json:"last_updated,omitempty"`
}

type DirectoriesState struct {
	Syncing    bool        `json:"syncing"`
	Current    string      `json:"current,omitempty"`
	LastReport *SyncReport `json:"last_report,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// DirectoriesViewModel syncs all reference data, one directory at a time
type DirectoriesViewModel struct {
	tokens      TokenSource
	directories []Directory
	log         *zap.Logger
	state       *Observable[DirectoriesState]

	syncMu sync.Mutex
}

func NewDirectoriesViewModel(tokens TokenSource, directories []Directory, log *zap.Logger) *DirectoriesViewModel {
	if log == nil {
		log = zap.NewNop()
	}
	return &DirectoriesViewModel{
		tokens:      tokens,
		directories: directories,
		log:         log,
		state:       NewObservable(DirectoriesState{}),
	}
}

func (vm *DirectoriesViewModel) State() DirectoriesState {
	return vm.state.Get()
}

// SyncAll syncs every directory in order. A failing directory is reported
// and the rest still run. The error is only set when nothing could start.
func (vm *DirectoriesViewModel) SyncAll(ctx context.Context) (SyncReport, error) {
	vm.syncMu.Lock()
	defer vm.syncMu.Unlock()

	token, err := vm.tokens.AccessToken()
	if err != nil {
		vm.state.Update(func(s DirectoriesState) DirectoriesState {
			s.Error = Message(err)
			return s
		})
		return SyncReport{}, err
	}

	vm.state.Update(func(s DirectoriesState) DirectoriesState {
		s.Syncing = true
		s.Error = ""
		return s
	})

	report := SyncReport{Results: make([]SyncResult, 0, len(vm.directories))}
	for _, dir := range vm.directories {
		vm.state.Update(func(s DirectoriesState) DirectoriesState {
			s.Current = dir.Name
			return s
		})

		result := SyncResult{Directory: dir.Name}
		n, err := dir.Repo.SyncFromServer(ctx, token)
		if err != nil {
			result.Error = Message(err)
			report.Failed++
		} else {
			result.Rows = n
		}
		report.Results = append(report.Results, result)
	}

	vm.log.Info("Directory sync finished",
		zap.Int("directories", len(report.Results)),
		zap.Int("failed", report.Failed))

	vm.state.Set(DirectoriesState{LastReport: &report})
	return report, nil
}

// Stats returns the row count and newest update time of each directory
func (vm *DirectoriesViewModel) Stats(ctx context.Context) ([]DirectoryStats, error) {
	stats := make([]DirectoryStats, 0, len(vm.directories))
	for _, dir := range vm.directories {
		count, err := dir.Repo.Count(ctx)
		if err != nil {
			return nil, err
		}
		last, err := dir.Repo.LastUpdated(ctx)
		if err != nil {
			return nil, err
		}
		stats = append(stats, DirectoryStats{Directory: dir.Name, Count: count, LastUpdated: last})
	}
	return stats, nil
}

func (vm *DirectoriesViewModel) ClearError() {
	vm.state.Update(func(s DirectoriesState) DirectoriesState {
		s.Error = ""
		return s
	})
}
