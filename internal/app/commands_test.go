package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/formulator/pkg/agent"
	core "github.com/ilkoid/formulator/pkg/app"
	"github.com/ilkoid/formulator/pkg/config"
	"github.com/ilkoid/formulator/pkg/events"
	"github.com/ilkoid/formulator/pkg/executor"
	"github.com/ilkoid/formulator/pkg/llm"
	"github.com/ilkoid/formulator/pkg/models"
)

type okExecutor struct{}

func (okExecutor) Execute(context.Context, string, []agent.Table) (executor.Result, error) {
	return executor.Result{Rows: []map[string]any{{"total": 3.0}}}, nil
}

func testEnv(t *testing.T, logsDir string) (*Env, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()

	registry := models.NewRegistry()
	code := llm.ProviderFunc(func(context.Context, llm.Dialog) (llm.Completion, error) {
		return llm.Completion{Content: "```python\ndef transform_data(df):\n    return df\n```"}, nil
	})
	deaf := llm.ProviderFunc(func(context.Context, llm.Dialog) (llm.Completion, error) {
		return llm.Completion{}, errors.New("401 Unauthorized\nbody")
	})
	require.NoError(t, registry.Register("fake", config.ModelDef{}, code))
	require.NoError(t, registry.Register("broken", config.ModelDef{}, deaf))

	comps := &core.Components{
		Config: &config.AppConfig{
			Models: config.ModelsConfig{Default: "fake"},
			Debug:  config.DebugConfig{LogsDir: logsDir},
		},
		Registry: registry,
		Executor: okExecutor{},
	}

	var out, errOut bytes.Buffer
	env := &Env{
		Out:   &out,
		Err:   &errOut,
		Width: 80,
		Load: func(string) (*core.Components, error) {
			return comps, nil
		},
	}
	return env, &out, &errOut
}

func writeTables(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tables.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"name":"t","rows":[{"a":1},{"a":2}]}]`), 0o644))
	return path
}

func TestCommandRegistry(t *testing.T) {
	r := NewCommandRegistry()
	SetupCommands(r)

	names := make([]string, 0)
	for _, c := range r.GetCommands() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"derive", "models", "refine", "traces"}, names)

	env, _, _ := testEnv(t, "")
	err := r.Execute(context.Background(), env, nil)
	assert.ErrorIs(t, err, ErrUsage)

	err = r.Execute(context.Background(), env, []string{"bogus"})
	assert.ErrorIs(t, err, ErrUsage)
	assert.Equal(t, "run with -h for help", ErrorHint(err))

	var buf bytes.Buffer
	r.Usage(&buf, "formulator")
	assert.Contains(t, buf.String(), "derive")
}

func TestDerive(t *testing.T) {
	r := NewCommandRegistry()
	SetupCommands(r)
	env, out, errOut := testEnv(t, "")

	err := r.Execute(context.Background(), env, []string{"derive", "-instruction", "x"})
	assert.ErrorIs(t, err, ErrUsage)

	err = r.Execute(context.Background(), env, []string{
		"derive", "-input", writeTables(t), "-instruction", "sum a", "-fields", "total",
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "model: fake")
	assert.Contains(t, out.String(), "ok")
	assert.Contains(t, out.String(), "def transform_data(df):")
	assert.Contains(t, errOut.String(), "attempt 0 (run)")
	assert.Contains(t, errOut.String(), "done after 0 repair(s)")
}

func TestDerive_JSON(t *testing.T) {
	r := NewCommandRegistry()
	SetupCommands(r)
	env, out, errOut := testEnv(t, "")

	err := r.Execute(context.Background(), env, []string{
		"derive", "-input", writeTables(t), "-instruction", "sum a", "-json", "-quiet", "-max-repair", "0",
	})
	require.NoError(t, err)
	assert.Empty(t, errOut.String())

	var cands []agent.Candidate
	require.NoError(t, json.Unmarshal(out.Bytes(), &cands))
	require.Len(t, cands, 1)
	assert.True(t, cands[0].OK())
	assert.Len(t, cands[0].Dialog, 3)
}

func TestDerive_TUIProgress(t *testing.T) {
	r := NewCommandRegistry()
	SetupCommands(r)
	env, out, _ := testEnv(t, "")

	err := r.Execute(context.Background(), env, []string{
		"derive", "-input", writeTables(t), "-instruction", "sum a", "-tui",
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "model: fake")
}

func TestRefine(t *testing.T) {
	r := NewCommandRegistry()
	SetupCommands(r)
	env, out, _ := testEnv(t, "")

	dialogPath := filepath.Join(t.TempDir(), "cand.json")
	require.NoError(t, os.WriteFile(dialogPath, []byte(`{"status":"ok","content":"c","dialog":[{"role":"user","content":"u"},{"role":"assistant","content":"a"}]}`), 0o644))

	err := r.Execute(context.Background(), env, []string{"refine", "-dialog", dialogPath})
	assert.ErrorIs(t, err, ErrUsage)

	err = r.Execute(context.Background(), env, []string{
		"refine", "-dialog", dialogPath, "-instruction", "add a column", "-json", "-quiet",
	})
	require.NoError(t, err)

	var cands []agent.Candidate
	require.NoError(t, json.Unmarshal(out.Bytes(), &cands))
	require.Len(t, cands, 1)
	assert.Len(t, cands[0].Dialog, 4)
}

func TestModels(t *testing.T) {
	r := NewCommandRegistry()
	SetupCommands(r)
	env, out, _ := testEnv(t, "")

	require.NoError(t, r.Execute(context.Background(), env, []string{"models"}))
	s := out.String()
	assert.Contains(t, s, "broken")
	assert.Contains(t, s, "401 Unauthorized")
	assert.NotContains(t, s, "body")
	assert.Contains(t, s, "fake")
	assert.Contains(t, s, "unavailable")
}

func TestTraces_Local(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run-1.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(""), 0o644))

	r := NewCommandRegistry()
	SetupCommands(r)
	env, out, _ := testEnv(t, dir)

	require.NoError(t, r.Execute(context.Background(), env, []string{"traces"}))
	assert.Contains(t, out.String(), "run-1.json")
	assert.NotContains(t, out.String(), "notes.txt")

	err := r.Execute(context.Background(), env, []string{"traces", "-n", "-1"})
	assert.ErrorIs(t, err, ErrUsage)

	env2, out2, _ := testEnv(t, filepath.Join(dir, "absent"))
	require.NoError(t, r.Execute(context.Background(), env2, []string{"traces"}))
	assert.Equal(t, "no traces\n", out2.String())
}

func TestRenderEvent(t *testing.T) {
	line := RenderEvent(events.Event{
		Type: events.EventRepairScheduled,
		Data: events.RepairData{Attempt: 2, Error: "Traceback:\n  File x\nKeyError: 'a'"},
	}, 80)
	assert.Contains(t, line, "repair 2: KeyError: 'a'")

	line = RenderEvent(events.Event{Type: events.EventCandidateEvaluated, Data: events.EvaluationData{}}, 80)
	assert.Contains(t, line, "leader: none")
}

func TestTailLines(t *testing.T) {
	assert.Equal(t, "a\nb", tailLines("a\nb\n", 5))
	assert.Equal(t, "...\nc\nd", tailLines("a\nb\nc\nd", 2))
}

func TestRenderCandidates_Empty(t *testing.T) {
	s := RenderCandidates("m", nil, 80)
	assert.Contains(t, s, "no candidates")
}
