package taskscheduler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAffinityString(t *testing.T) {
	require.Equal(t, "Main", Main.String())
	require.Equal(t, "Worker", Worker.String())
	require.Equal(t, "Render", Render.String())
	require.Equal(t, "RHI", RHI.String())
	require.Equal(t, "FileSystem", FileSystem.String())
	require.Equal(t, "Affinity(99)", Affinity(99).String())
}

func TestNumAffinityClasses(t *testing.T) {
	require.Equal(t, 5, NumAffinityClasses)
}
