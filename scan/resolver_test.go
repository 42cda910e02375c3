package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveOwner_Precedence(t *testing.T) {
	full := OwnerCandidates{
		ACLOwner:    "acl-user",
		ObjectTags:  map[string]string{"owner": "object-user"},
		RootTags:    map[string]string{"owner": "root-user"},
		AccountTags: map[string]string{"owner": "account-user"},
	}

	tests := []struct {
		name   string
		mutate func(c OwnerCandidates) OwnerCandidates
		want   string
	}{
		{
			name:   "explicit ownership field wins",
			mutate: func(c OwnerCandidates) OwnerCandidates { return c },
			want:   "acl-user",
		},
		{
			name: "object tag when no explicit owner",
			mutate: func(c OwnerCandidates) OwnerCandidates {
				c.ACLOwner = ""
				return c
			},
			want: "object-user",
		},
		{
			name: "container tag when object level empty",
			mutate: func(c OwnerCandidates) OwnerCandidates {
				c.ACLOwner = ""
				c.ObjectTags = nil
				return c
			},
			want: "root-user",
		},
		{
			name: "account tag as last resort",
			mutate: func(c OwnerCandidates) OwnerCandidates {
				c.ACLOwner = ""
				c.ObjectTags = nil
				c.RootTags = map[string]string{"env": "prod"}
				return c
			},
			want: "account-user",
		},
		{
			name: "no candidate yields empty",
			mutate: func(c OwnerCandidates) OwnerCandidates {
				return OwnerCandidates{}
			},
			want: "",
		},
		{
			name: "superuser sentinel falls through to tags",
			mutate: func(c OwnerCandidates) OwnerCandidates {
				c.ACLOwner = SuperuserOwner
				return c
			},
			want: "object-user",
		},
		{
			name: "superuser sentinel with no tags yields empty",
			mutate: func(c OwnerCandidates) OwnerCandidates {
				return OwnerCandidates{ACLOwner: SuperuserOwner}
			},
			want: "",
		},
		{
			name: "whitespace-only explicit owner skipped",
			mutate: func(c OwnerCandidates) OwnerCandidates {
				c.ACLOwner = "   "
				return c
			},
			want: "object-user",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveOwner(tt.mutate(full)))
		})
	}
}

func TestOwnerFromTags(t *testing.T) {
	tests := []struct {
		name string
		tags map[string]string
		want string
	}{
		{
			name: "exact key",
			tags: map[string]string{"owner": "alice"},
			want: "alice",
		},
		{
			name: "case insensitive key",
			tags: map[string]string{"Owner": "bob"},
			want: "bob",
		},
		{
			name: "upper case key",
			tags: map[string]string{"OWNER": "carol"},
			want: "carol",
		},
		{
			name: "padded key",
			tags: map[string]string{"  owner  ": "dave"},
			want: "dave",
		},
		{
			name: "padded value trimmed",
			tags: map[string]string{"owner": "  eve  "},
			want: "eve",
		},
		{
			name: "empty value does not count",
			tags: map[string]string{"owner": "   ", "team": "data"},
			want: "",
		},
		{
			name: "unrelated keys",
			tags: map[string]string{"team": "data", "env": "prod"},
			want: "",
		},
		{
			name: "nil tags",
			tags: nil,
			want: "",
		},
		{
			name: "multiple owner spellings resolve deterministically",
			tags: map[string]string{"OWNER": "upper", "owner": "lower"},
			want: "upper",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OwnerFromTags(tt.tags))
		})
	}
}

func TestMergeTags(t *testing.T) {
	account := map[string]string{"env": "prod", "owner": "platform", "cost_center": "cc-1"}
	root := map[string]string{"owner": "storage-team", "tier": "hot"}
	object := map[string]string{"owner": "alice", "pii": "true"}

	got := MergeTags(account, root, object)

	assert.Equal(t, map[string]string{
		"env":         "prod",
		"cost_center": "cc-1",
		"tier":        "hot",
		"owner":       "alice",
		"pii":         "true",
	}, got)
}

func TestMergeTags_LowerScopesSurviveWithoutCollision(t *testing.T) {
	got := MergeTags(
		map[string]string{"a": "1"},
		map[string]string{"b": "2"},
		map[string]string{"c": "3"},
	)
	assert.Equal(t, map[string]string{"a": "1", "b": "2", "c": "3"}, got)
}

func TestMergeTags_NilInputs(t *testing.T) {
	got := MergeTags(nil, nil, nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	got = MergeTags(nil, map[string]string{"owner": "root-user"}, nil)
	assert.Equal(t, map[string]string{"owner": "root-user"}, got)
}

func TestMergeTags_DoesNotAliasInputs(t *testing.T) {
	object := map[string]string{"owner": "alice"}
	got := MergeTags(nil, nil, object)
	got["owner"] = "mutated"
	assert.Equal(t, "alice", object["owner"])
}
