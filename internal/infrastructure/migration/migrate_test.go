package migration

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeEngine struct {
	version  uint
	dirty    bool
	applied  bool
	err      error
	steps    []int
	closeErr error
}

func (f *fakeEngine) Up() error                  { return f.run(5) }
func (f *fakeEngine) Down() error                { return f.run(0) }
func (f *fakeEngine) Drop() error                { return f.err }
func (f *fakeEngine) Migrate(version uint) error { return f.run(version) }

func (f *fakeEngine) Steps(n int) error {
	f.steps = append(f.steps, n)
	return f.run(uint(int(f.version) + n))
}

func (f *fakeEngine) run(target uint) error {
	if f.err != nil {
		return f.err
	}
	if f.applied && f.version == target {
		return migrate.ErrNoChange
	}
	f.version, f.applied = target, target > 0
	return nil
}

func (f *fakeEngine) Version() (uint, bool, error) {
	if !f.applied {
		return 0, false, migrate.ErrNilVersion
	}
	return f.version, f.dirty, nil
}

func (f *fakeEngine) Force(version int) error {
	f.version, f.dirty, f.applied = uint(version), false, version > 0
	return nil
}

func (f *fakeEngine) Close() (error, error) { return nil, f.closeErr }

func TestMigrator_Up(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	fe := &fakeEngine{}
	m := newMigrator(fe, zap.New(core))

	require.NoError(t, m.Up())
	state, err := m.State()
	require.NoError(t, err)
	assert.Equal(t, State{Version: 5}, state)
	assert.Equal(t, 1, logs.FilterMessage("Migrations completed").Len())

	require.NoError(t, m.Up(), "no change is not an error")
	assert.Equal(t, 1, logs.FilterMessage("Schema already up to date").Len())
}

func TestMigrator_StateWithoutMigrations(t *testing.T) {
	m := newMigrator(&fakeEngine{}, nil)

	state, err := m.State()
	require.NoError(t, err)
	assert.Equal(t, State{}, state)
}

func TestMigrator_StepsAndGoTo(t *testing.T) {
	fe := &fakeEngine{version: 2, applied: true}
	m := newMigrator(fe, zap.NewNop())

	require.NoError(t, m.Steps(-1))
	assert.Equal(t, []int{-1}, fe.steps)
	assert.Equal(t, uint(1), fe.version)

	require.NoError(t, m.GoTo(4))
	assert.Equal(t, uint(4), fe.version)
}

func TestMigrator_Failure(t *testing.T) {
	fe := &fakeEngine{err: errors.New("relation already exists")}
	m := newMigrator(fe, zap.NewNop())

	err := m.Up()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migration up failed")
	assert.ErrorIs(t, err, fe.err)
}

func TestMigrator_ForceClearsDirty(t *testing.T) {
	fe := &fakeEngine{version: 3, dirty: true, applied: true}
	m := newMigrator(fe, zap.NewNop())

	require.NoError(t, m.Force(2))
	state, err := m.State()
	require.NoError(t, err)
	assert.Equal(t, State{Version: 2}, state)
}

func TestMigrator_Close(t *testing.T) {
	closeErr := errors.New("connection reset")
	m := newMigrator(&fakeEngine{closeErr: closeErr}, zap.NewNop())

	assert.ErrorIs(t, m.Close(), closeErr)
	assert.NoError(t, newMigrator(&fakeEngine{}, zap.NewNop()).Close())
}
