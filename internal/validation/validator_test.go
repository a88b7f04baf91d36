package validation_test

import (
	"testing"

	"sewabaju/internal/models"
	"sewabaju/internal/validation"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNew_DecimalGreaterThanZero(t *testing.T) {
	v := validation.New()

	ok := models.GarmentVariant{Size: "M", PricePerDay: decimal.NewFromInt(50000), Stock: 1, Condition: models.ConditionGood}
	assert.NoError(t, v.Struct(ok))

	zero := ok
	zero.PricePerDay = decimal.Zero
	err := v.Struct(zero)
	assert.Error(t, err)
	assert.Contains(t, validation.Messages(err), "PricePerDay")
}

func TestNew_RejectsUnknownCondition(t *testing.T) {
	v := validation.New()
	variant := models.GarmentVariant{Size: "L", PricePerDay: decimal.NewFromInt(1), Condition: "torn"}

	err := v.Struct(variant)
	assert.Error(t, err)
	assert.Contains(t, validation.Messages(err)["Condition"], "oneof")
}
