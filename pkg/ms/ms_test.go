package ms_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ms-lang/ms/internal/modules"
	"github.com/ms-lang/ms/pkg/ms"
)

func TestRunSourcePersistsGlobalsAcrossCalls(t *testing.T) {
	var out bytes.Buffer
	machine := ms.New(ms.Options{Stdout: &out})
	defer machine.Close()

	_, err := machine.RunSource("x = 40")
	require.NoError(t, err)
	_, err = machine.RunSource("print(x + 2)")
	require.NoError(t, err)
	require.Equal(t, "42\n", out.String())
}

func TestClassifyExitCodes(t *testing.T) {
	require.Equal(t, ms.ExitOK, ms.Classify(nil))

	var out bytes.Buffer
	machine := ms.New(ms.Options{Stdout: &out})
	defer machine.Close()

	_, err := machine.RunSource("1 +")
	require.Error(t, err)
	require.Equal(t, ms.ExitCompileError, ms.Classify(err))

	_, err = machine.RunSource("1 / 0")
	require.Error(t, err)
	require.Equal(t, ms.ExitRuntimeError, ms.Classify(err))
}

func TestMachineHasModuleBinderWired(t *testing.T) {
	var out bytes.Buffer
	machine := ms.New(ms.Options{Stdout: &out})
	defer machine.Close()
	require.IsType(t, &modules.Registry{}, machine.Modules)

	_, err := machine.RunSource(`
import nosuchmodule
nosuchmodule.anything()
`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "AttributeError")
}
