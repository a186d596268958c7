package bonus

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeSplitDefaults(t *testing.T) {
	ratios := DefaultParams().Ratios

	first := ComputeSplit(big.NewInt(100), 0, ratios, false)
	require.Zero(t, first.BonusPerSlot.Sign())
	require.Equal(t, int64(35), first.DboxTotal.Int64())
	require.Equal(t, int64(35), first.Reserve.Int64())
	require.Equal(t, int64(10), first.Pool.Int64())
	require.Equal(t, int64(5), first.LastPlayer.Int64())
	require.Equal(t, int64(5), first.Team.Int64())
	require.Equal(t, int64(5), first.Operator.Int64())
	require.Zero(t, first.Commission.Sign())

	second := ComputeSplit(big.NewInt(100), 1, ratios, true)
	require.Equal(t, int64(35), second.BonusPerSlot.Int64())
	require.Equal(t, int64(5), second.Commission.Int64())

	third := ComputeSplit(big.NewInt(100), 3, ratios, false)
	require.Equal(t, int64(11), third.BonusPerSlot.Int64())
}

func TestComputeSplitFloorsUnit(t *testing.T) {
	split := ComputeSplit(big.NewInt(199), 2, DefaultParams().Ratios, true)
	require.Equal(t, int64(1), split.Unit.Int64())
	require.Equal(t, int64(17), split.BonusPerSlot.Int64())
	require.Equal(t, int64(100), split.Total().Int64())
}

func TestSplitNeverExceedsPrice(t *testing.T) {
	ratios := DefaultParams().Ratios
	for _, price := range []int64{100, 101, 150, 999, 1000, 123457, 10_000_000} {
		for _, active := range []uint64{0, 1, 2, 7, 1000} {
			for _, invited := range []bool{false, true} {
				split := ComputeSplit(big.NewInt(price), active, ratios, invited)
				require.LessOrEqual(t, split.Total().Cmp(big.NewInt(price)), 0,
					"price=%d active=%d invited=%v", price, active, invited)
				if active > 0 {
					spread := new(big.Int).Mul(split.BonusPerSlot, new(big.Int).SetUint64(active))
					require.LessOrEqual(t, spread.Cmp(split.DboxTotal), 0)
				}
			}
		}
	}
}

func TestParamsValidate(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())

	bad := DefaultParams()
	bad.Ratios.Invitor = 6
	require.Error(t, bad.Validate())

	bad = DefaultParams()
	bad.MinOpsBudget = 4
	require.Error(t, bad.Validate())

	bad = DefaultParams()
	bad.Accounts.Team = bad.Accounts.Pool
	require.Error(t, bad.Validate())

	bad = DefaultParams()
	bad.MaxLatest = 0
	require.Error(t, bad.Validate())

	_, err := NewEngine(bad)
	require.Error(t, err)
}
