package flowview

import (
	"testing"

	"github.com/flowscope/flowscope/pkg/flowgraph"
)

func TestNewViewBuildsNodeTexture(t *testing.T) {
	engine := flowgraph.NewEngine(nil, nil)
	v := NewView(engine, nil)
	if v.nodeImage == nil {
		t.Fatal("a freshly constructed view must carry its node texture")
	}
	if v.fontSource == nil || v.monoSource == nil {
		t.Error("view font sources missing")
	}
}
