package integration_test

import (
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idelchi/folderstat/internal/integration"
)

func TestRenderFor(t *testing.T) {
	rendered, err := integration.RenderFor("/usr/bin/zsh")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(rendered, "#!/usr/bin/zsh\n"))
	assert.Contains(t, rendered, "folderstat() {")
	assert.Contains(t, rendered, "command folderstat")
	assert.NotContains(t, rendered, "{{")
}

func TestRender(t *testing.T) {
	if _, err := exec.LookPath("zsh"); err != nil {
		_, err := integration.Render()
		require.Error(t, err)

		return
	}

	rendered, err := integration.Render()
	require.NoError(t, err)
	assert.Contains(t, rendered, "fzf")
}
