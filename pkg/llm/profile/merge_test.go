package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/formulator/pkg/llm"
)

func TestMergeSystemIntoFirstUser(t *testing.T) {
	tests := []struct {
		name  string
		input llm.Dialog
		want  llm.Dialog
	}{
		{
			name:  "system and user collapse into one message",
			input: llm.Dialog{llm.SystemMessage("be brief"), llm.UserMessage("hi")},
			want:  llm.Dialog{llm.UserMessage("be brief\n\nhi")},
		},
		{
			name:  "no user messages passes through",
			input: llm.Dialog{llm.SystemMessage("be brief"), llm.AssistantMessage("ok")},
			want:  llm.Dialog{llm.SystemMessage("be brief"), llm.AssistantMessage("ok")},
		},
		{
			name:  "no system messages passes through",
			input: llm.Dialog{llm.UserMessage("a"), llm.AssistantMessage("b")},
			want:  llm.Dialog{llm.UserMessage("a"), llm.AssistantMessage("b")},
		},
		{
			name: "only the first user message gets the prefix",
			input: llm.Dialog{
				llm.SystemMessage("sys"),
				llm.UserMessage("u1"),
				llm.AssistantMessage("a1"),
				llm.UserMessage("u2"),
			},
			want: llm.Dialog{
				llm.UserMessage("sys\n\nu1"),
				llm.AssistantMessage("a1"),
				llm.UserMessage("u2"),
			},
		},
		{
			name: "several system messages keep their order",
			input: llm.Dialog{
				llm.SystemMessage("s1"),
				llm.AssistantMessage("a0"),
				llm.SystemMessage("s2"),
				llm.UserMessage("u1"),
			},
			want: llm.Dialog{
				llm.AssistantMessage("a0"),
				llm.UserMessage("s1\n\ns2\n\nu1"),
			},
		},
		{
			name:  "empty dialog",
			input: llm.Dialog{},
			want:  llm.Dialog{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeSystemIntoFirstUser(tt.input)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMergeSystemIntoFirstUser_DoesNotMutateInput(t *testing.T) {
	input := llm.Dialog{llm.SystemMessage("sys"), llm.UserMessage("hi")}
	snapshot := input.Clone()

	got := MergeSystemIntoFirstUser(input)
	require.Len(t, got, 1)
	got[0].Content = "changed"

	assert.Equal(t, snapshot, input)
}

func TestOllamaShapeMessages(t *testing.T) {
	p, err := For(llm.EndpointOllama)
	require.NoError(t, err)

	got := p.ShapeMessages(llm.Dialog{llm.SystemMessage("S"), llm.UserMessage("U")})
	require.Len(t, got, 1)
	assert.Equal(t, llm.RoleUser, got[0].Role)
	assert.Equal(t, "S\n\nU", got[0].Content)

	other, err := For(llm.EndpointGemini)
	require.NoError(t, err)
	d := llm.Dialog{llm.SystemMessage("S"), llm.UserMessage("U")}
	assert.Equal(t, d, other.ShapeMessages(d))
}
