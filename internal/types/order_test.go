package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/azuric/pairs/pkg/errors"
)

type OrderTestSuite struct {
	suite.Suite
}

func TestOrderSuite(t *testing.T) {
	suite.Run(t, new(OrderTestSuite))
}

func (suite *OrderTestSuite) TestSideOpposite() {
	suite.Equal(SideSell, SideBuy.Opposite())
	suite.Equal(SideBuy, SideSell.Opposite())
}

func (suite *OrderTestSuite) TestLegRoleOpposite() {
	suite.Equal(LegRoleDenominator, LegRoleNumerator.Opposite())
	suite.Equal(LegRoleNumerator, LegRoleDenominator.Opposite())
}

func (suite *OrderTestSuite) TestSpreadOrderValid() {
	order := SpreadOrder{
		Symbol:      "AAA/BBB",
		Side:        SideBuy,
		Quantity:    300,
		SpreadPrice: 2.5,
		CreatedAt:   time.Now(),
	}
	suite.NoError(order.Validate())
}

func (suite *OrderTestSuite) TestSpreadOrderRejectsMissingSymbol() {
	order := SpreadOrder{Side: SideBuy, Quantity: 300, SpreadPrice: 2.5}
	err := order.Validate()
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidOrder))
}

func (suite *OrderTestSuite) TestSpreadOrderRejectsBadSide() {
	order := SpreadOrder{Symbol: "AAA/BBB", Side: "SHORT", Quantity: 300, SpreadPrice: 2.5}
	suite.Error(order.Validate())
}

func (suite *OrderTestSuite) TestSpreadOrderRejectsNonPositiveQuantity() {
	order := SpreadOrder{Symbol: "AAA/BBB", Side: SideBuy, Quantity: 0, SpreadPrice: 2.5}
	suite.Error(order.Validate())

	order.Quantity = -10
	suite.Error(order.Validate())
}

func (suite *OrderTestSuite) TestSpreadOrderRejectsZeroSpreadPrice() {
	order := SpreadOrder{Symbol: "AAA/BBB", Side: SideBuy, Quantity: 300}
	suite.Error(order.Validate())
}

func (suite *OrderTestSuite) TestDefaultExecutionParams() {
	params := DefaultExecutionParams()
	suite.Equal(LegRoleNumerator, params.LiquidLeg)
	suite.Equal(100.0, params.ClipSize)
	suite.Equal(5*time.Minute, params.MaxExecutionTime)
	suite.Equal(PriceBasisTouch, params.PriceBasis)
	suite.True(params.LoggingEnabled)
	suite.NoError(params.Validate())
}

func (suite *OrderTestSuite) TestExecutionParamsRejectsBadLiquidLeg() {
	params := DefaultExecutionParams()
	params.LiquidLeg = "HEDGE"

	err := params.Validate()
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidExecutionParams))
}

func (suite *OrderTestSuite) TestExecutionParamsRejectsNonPositiveClipSize() {
	params := DefaultExecutionParams()
	params.ClipSize = 0
	suite.Error(params.Validate())

	params.ClipSize = -5
	suite.Error(params.Validate())
}

func (suite *OrderTestSuite) TestExecutionParamsRejectsBadPriceBasis() {
	params := DefaultExecutionParams()
	params.PriceBasis = "LAST"
	suite.Error(params.Validate())
}

func (suite *OrderTestSuite) TestExecutionParamsRejectsNonPositiveMaxExecutionTime() {
	params := DefaultExecutionParams()
	params.MaxExecutionTime = 0
	suite.Error(params.Validate())
}
