package domain

import "testing"

func TestResourceState_Routing(t *testing.T) {
	tests := []struct {
		state    ResourceState
		deletion bool
		upsert   bool
	}{
		{ResourceStateSync, false, false},
		{ResourceStateAdd, false, true},
		{ResourceStateUpdate, false, true},
		{ResourceStateRemove, true, false},
		{ResourceStateTrash, true, false},
		{"exists", false, false},
	}

	for _, tt := range tests {
		if got := tt.state.IsDeletion(); got != tt.deletion {
			t.Errorf("%s.IsDeletion() = %v, want %v", tt.state, got, tt.deletion)
		}
		if got := tt.state.IsUpsert(); got != tt.upsert {
			t.Errorf("%s.IsUpsert() = %v, want %v", tt.state, got, tt.upsert)
		}
	}
}

func TestChangeEvent_EffectiveState(t *testing.T) {
	e := &ChangeEvent{ResourceState: ResourceStateTrash}
	if e.EffectiveState() != ResourceStateTrash {
		t.Errorf("expected trash, got %s", e.EffectiveState())
	}

	e.Changed = ChangedChildren
	if !e.IsContainerMutation() {
		t.Error("expected container mutation")
	}
	if e.EffectiveState() != ResourceStateUpdate {
		t.Errorf("expected children change to force update, got %s", e.EffectiveState())
	}

	e.Changed = "content"
	if e.IsContainerMutation() {
		t.Error("expected content change not to be a container mutation")
	}
}

func TestChangeEvent_IsContainerMutation_List(t *testing.T) {
	tests := []struct {
		changed string
		want    bool
	}{
		{"", false},
		{"children", true},
		{"content,children", true},
		{"children, properties", true},
		{"content,properties", false},
		{"childrenx", false},
	}

	for _, tt := range tests {
		e := &ChangeEvent{ResourceState: ResourceStateAdd, Changed: tt.changed}
		if got := e.IsContainerMutation(); got != tt.want {
			t.Errorf("Changed=%q: expected %v, got %v", tt.changed, tt.want, got)
		}
		if tt.want && e.EffectiveState() != ResourceStateUpdate {
			t.Errorf("Changed=%q: expected update, got %s", tt.changed, e.EffectiveState())
		}
	}
}
