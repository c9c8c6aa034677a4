package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeVerdicts(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want map[string]Verdict
	}{
		{
			name: "mapping of objects",
			raw:  `{"a@x.com": {"category": "Finance", "rationale": "bank mail"}, "b@y.com": {"label": "Dev_Tech", "reason": "ci"}}`,
			want: map[string]Verdict{
				"a@x.com": {Category: "Finance", Rationale: "bank mail"},
				"b@y.com": {Category: "Dev_Tech", Rationale: "ci"},
			},
		},
		{
			name: "mapping of bare categories",
			raw:  `{"a@x.com": "Finance"}`,
			want: map[string]Verdict{"a@x.com": {Category: "Finance"}},
		},
		{
			name: "list of single-key objects",
			raw:  `[{"a@x.com": {"category": "Finance", "reasoning": "statement"}}, {"b@y.com": "Personal_Life"}]`,
			want: map[string]Verdict{
				"a@x.com": {Category: "Finance", Rationale: "statement"},
				"b@y.com": {Category: "Personal_Life"},
			},
		},
		{
			name: "list with embedded sender",
			raw:  `[{"sender": "a@x.com", "category": "Finance", "rationale": "r1"}, {"id": "b@y.com", "category": "Dev_Tech"}]`,
			want: map[string]Verdict{
				"a@x.com": {Category: "Finance", Rationale: "r1"},
				"b@y.com": {Category: "Dev_Tech"},
			},
		},
		{
			name: "wrapped results",
			raw:  `{"results": [{"email": "a@x.com", "category": "Finance"}]}`,
			want: map[string]Verdict{"a@x.com": {Category: "Finance"}},
		},
		{
			name: "single embedded object",
			raw:  `{"sender": "a@x.com", "category": "Finance"}`,
			want: map[string]Verdict{"a@x.com": {Category: "Finance"}},
		},
		{
			name: "malformed items are dropped",
			raw: `[{"sender": "a@x.com", "category": "Finance"}, 42, "junk", {"b@y.com": 7},
				{"x": 1, "y": 2}, {"c@z.com": {"rationale": "no category"}}, {"d@w.com": "  "}]`,
			want: map[string]Verdict{"a@x.com": {Category: "Finance"}},
		},
		{
			name: "first verdict wins",
			raw:  `[{"sender": "a@x.com", "category": "Finance"}, {"sender": "a@x.com", "category": "Dev_Tech"}]`,
			want: map[string]Verdict{"a@x.com": {Category: "Finance"}},
		},
		{
			name: "scalar document",
			raw:  `"Finance"`,
			want: map[string]Verdict{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeVerdicts([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeVerdictsRejectsNonJSON(t *testing.T) {
	_, err := NormalizeVerdicts([]byte("Sure! Here are the results"))
	assert.Error(t, err)
}

func TestNormalizeProposals(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want map[string]string
	}{
		{
			name: "pattern to category",
			raw:  `{"shop\\.example": "Shopping_Promo", "\\bhira\\b": "Medical_Work"}`,
			want: map[string]string{`shop\.example`: "Shopping_Promo", `\bhira\b`: "Medical_Work"},
		},
		{
			name: "category to patterns",
			raw:  `{"Finance": ["stripe", "paypal"], "Dev_Tech": ["gitlab"]}`,
			want: map[string]string{"stripe": "Finance", "paypal": "Finance", "gitlab": "Dev_Tech"},
		},
		{
			name: "list of objects",
			raw:  `[{"pattern": "stripe", "category": "Finance"}, {"pattern": "", "category": "Finance"}, {"gitlab": "Dev_Tech"}]`,
			want: map[string]string{"stripe": "Finance", "gitlab": "Dev_Tech"},
		},
		{
			name: "wrapped",
			raw:  `{"patterns": [{"pattern": "stripe", "label": "Finance"}]}`,
			want: map[string]string{"stripe": "Finance"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeProposals([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
