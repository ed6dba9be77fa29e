package engine

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"kestrel-go/cmd/kestrel-playbook/playbook"
	"kestrel-go/pkg/models"
)

// Resolver locates the playbook for an alert: static and generated
// directories first (strict id match), then the planner.
type Resolver struct {
	staticDir    string
	generatedDir string
	parser       *playbook.Parser
	planner      Planner
	fallback     *DeterministicPlanner
	log          *zap.SugaredLogger
}

func NewResolver(staticDir, generatedDir string, parser *playbook.Parser, planner Planner, log *zap.SugaredLogger) *Resolver {
	return &Resolver{
		staticDir:    staticDir,
		generatedDir: generatedDir,
		parser:       parser,
		planner:      planner,
		fallback:     &DeterministicPlanner{},
		log:          log,
	}
}

// FindExisting looks for {id}.yaml under the static and generated
// directories and verifies the in-file id matches.
func (r *Resolver) FindExisting(alert *models.Alert) *playbook.Playbook {
	id := playbook.IDFor(alert.EventType, string(alert.Severity))

	for _, dir := range []string{r.staticDir, r.generatedDir} {
		path := filepath.Join(dir, id+".yaml")
		if _, err := os.Stat(path); err != nil {
			continue
		}
		pb, err := r.parser.ParseFile(path)
		if err != nil {
			r.log.Warnw("existing playbook invalid, ignoring", "path", path, "error", err)
			continue
		}
		if pb.ID != id {
			r.log.Warnw("playbook id mismatch, ignoring", "path", path, "file_id", pb.ID, "want", id)
			continue
		}
		return pb
	}
	return nil
}

// Resolve returns the playbook to execute for an alert, generating and
// persisting one when none exists.
func (r *Resolver) Resolve(alert *models.Alert) (*playbook.Playbook, error) {
	if pb := r.FindExisting(alert); pb != nil {
		return pb, nil
	}
	return r.generate(alert)
}

// generate asks the planner for YAML, validates it through the catalog and
// persists it under the generated directory. Planner output that fails
// validation falls back to the deterministic recipe.
func (r *Resolver) generate(alert *models.Alert) (*playbook.Playbook, error) {
	id := playbook.IDFor(alert.EventType, string(alert.Severity))

	yamlText, err := r.planner.Plan(alert)
	if err != nil {
		r.log.Warnw("planner failed, using deterministic recipe", "alert_id", alert.ID, "error", err)
		yamlText, err = r.fallback.Plan(alert)
		if err != nil {
			return nil, err
		}
	}

	pb, err := r.parser.ParseText(yamlText)
	if err != nil {
		r.log.Warnw("planner output invalid, using deterministic recipe", "alert_id", alert.ID, "error", err)
		yamlText, ferr := r.fallback.Plan(alert)
		if ferr != nil {
			return nil, ferr
		}
		pb, err = r.parser.ParseText(yamlText)
		if err != nil {
			return nil, err
		}
	}

	// The persisted id is always normalised to pb-{event_type}-{severity}.
	pb.ID = id

	data, err := pb.Marshal()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(r.generatedDir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(r.generatedDir, id+".yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, err
	}
	r.log.Infow("playbook generated", "id", id, "path", path)

	return pb, nil
}
