package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorTestSuite struct {
	suite.Suite
}

func TestErrorSuite(t *testing.T) {
	suite.Run(t, new(ErrorTestSuite))
}

func (suite *ErrorTestSuite) TestNewError() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.NotNil(err)
	suite.Equal(ErrCodeInvalidParameter, err.Code)
	suite.Equal("invalid parameter", err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestNewfError() {
	err := Newf(ErrCodeInstrumentNotFound, "instrument %q not found", "AAA")
	suite.NotNil(err)
	suite.Equal(ErrCodeInstrumentNotFound, err.Code)
	suite.Equal(`instrument "AAA" not found`, err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestWrapError() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeSubmitFailed, "failed to submit leg order", cause)
	suite.NotNil(err)
	suite.Equal(ErrCodeSubmitFailed, err.Code)
	suite.Equal("failed to submit leg order", err.Message)
	suite.Equal(cause, err.Cause)
}

func (suite *ErrorTestSuite) TestWrapfError() {
	cause := errors.New("underlying error")
	err := Wrapf(ErrCodeSubmitFailed, cause, "failed to submit leg order for spread %d", 42)
	suite.NotNil(err)
	suite.Equal(ErrCodeSubmitFailed, err.Code)
	suite.Equal("failed to submit leg order for spread 42", err.Message)
	suite.Equal(cause, err.Cause)
}

func (suite *ErrorTestSuite) TestErrorString() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.Equal("[100] invalid parameter", err.Error())
}

func (suite *ErrorTestSuite) TestErrorStringWithCause() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeInstrumentNotFound, "instrument not found", cause)
	suite.Equal("[200] instrument not found: underlying error", err.Error())
}

func (suite *ErrorTestSuite) TestUnwrap() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeInstrumentNotFound, "instrument not found", cause)
	suite.Equal(cause, err.Unwrap())
}

func (suite *ErrorTestSuite) TestUnwrapNil() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.Nil(err.Unwrap())
}

func (suite *ErrorTestSuite) TestIsMatchesCause() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeNoMarketPrice, "no market price", cause)
	suite.True(Is(err, cause))
}

func (suite *ErrorTestSuite) TestAsThroughWrapping() {
	inner := New(ErrCodeNoMarketPrice, "no market price")
	outer := fmt.Errorf("pricing failed: %w", inner)

	var e *Error
	suite.True(As(outer, &e))
	suite.Equal(ErrCodeNoMarketPrice, e.Code)
}

func (suite *ErrorTestSuite) TestGetCode() {
	err := New(ErrCodeMappingExists, "mapping exists")
	suite.Equal(ErrCodeMappingExists, GetCode(err))
}

func (suite *ErrorTestSuite) TestGetCodeUnknownForForeignError() {
	suite.Equal(ErrCodeUnknown, GetCode(errors.New("plain error")))
}

func (suite *ErrorTestSuite) TestHasCode() {
	err := Newf(ErrCodeInvalidTransition, "cannot start from status %s", "COMPLETED")
	suite.True(HasCode(err, ErrCodeInvalidTransition))
	suite.False(HasCode(err, ErrCodeInvalidOrder))
}

func (suite *ErrorTestSuite) TestHasCodeThroughWrapping() {
	inner := New(ErrCodeOrderRejected, "order rejected")
	outer := Wrap(ErrCodeSubmitFailed, "submit failed", inner)

	// the outermost code wins
	suite.True(HasCode(outer, ErrCodeSubmitFailed))
	suite.False(HasCode(outer, ErrCodeOrderRejected))
}
