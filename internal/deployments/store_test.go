package deployments

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evaluatorRecord() Record {
	return Record{
		Contract:        "Evaluator",
		Address:         "0x5FbDB2315678afecb367f032d93F642f64180aa3",
		TxHash:          "0x9a3fa6c1f0dca0b3d0ae50e79f5e24c1c2a0c3b6a3fb8c7e1d5c6c1b8e2f4a10",
		BlockNumber:     12,
		Deployer:        "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		ChainID:         5,
		ConstructorArgs: []string{"0xf4728721157A58b0509c8c109Ec2AF726B562D6A"},
		ABI:             json.RawMessage(`[]`),
		DeployedAt:      time.Date(2023, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSaveAndLoad(t *testing.T) {
	store := NewStore(t.TempDir())

	path, err := store.Save("goerli", evaluatorRecord())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.Dir, "goerli", "Evaluator.json"), path)

	rec, err := store.Load("goerli", "Evaluator")
	require.NoError(t, err)
	assert.Equal(t, evaluatorRecord().Address, rec.Address)
	assert.Equal(t, []string{"0xf4728721157A58b0509c8c109Ec2AF726B562D6A"}, rec.ConstructorArgs)
	assert.True(t, evaluatorRecord().DeployedAt.Equal(rec.DeployedAt))
	assert.JSONEq(t, `[]`, string(rec.ABI))

	// No temp files are left behind.
	entries, err := os.ReadDir(filepath.Join(store.Dir, "goerli"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSaveOverwritesAndStamps(t *testing.T) {
	store := NewStore(t.TempDir())

	rec := evaluatorRecord()
	_, err := store.Save("goerli", rec)
	require.NoError(t, err)

	rec.Address = "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"
	rec.DeployedAt = time.Time{}
	_, err = store.Save("goerli", rec)
	require.NoError(t, err)

	got, err := store.Load("goerli", "Evaluator")
	require.NoError(t, err)
	assert.Equal(t, rec.Address, got.Address)
	assert.False(t, got.DeployedAt.IsZero())
}

func TestLoadMissing(t *testing.T) {
	store := NewStore(t.TempDir())

	_, err := store.Load("goerli", "Evaluator")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList(t *testing.T) {
	store := NewStore(t.TempDir())

	records, err := store.List("goerli")
	require.NoError(t, err)
	assert.Empty(t, records)

	second := evaluatorRecord()
	second.Contract = "Assessor"
	for _, rec := range []Record{evaluatorRecord(), second} {
		_, err := store.Save("goerli", rec)
		require.NoError(t, err)
	}
	_, err = store.Save("sepolia", evaluatorRecord())
	require.NoError(t, err)

	records, err = store.List("goerli")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Assessor", records[0].Contract)
	assert.Equal(t, "Evaluator", records[1].Contract)
}

func TestInvalidNames(t *testing.T) {
	store := NewStore(t.TempDir())

	for _, network := range []string{"", "..", "a/b", `a\b`} {
		_, err := store.Save(network, evaluatorRecord())
		assert.ErrorIs(t, err, ErrInvalidName, network)
	}

	rec := evaluatorRecord()
	rec.Contract = "contracts/Evaluator.sol:Evaluator"
	_, err := store.Save("goerli", rec)
	assert.ErrorIs(t, err, ErrInvalidName)
}
