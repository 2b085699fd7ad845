package valueobject

import (
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/gig-escrow/internal/pkg/apperror"
)

// Money - сумма в минимальных единицах валюты (копейки, центы). Дробей нет.
type Money struct {
	Amount   int64
	Currency string
}

func NewMoney(amount int64, currency string) (Money, error) {
	if amount < 0 {
		return Money{}, apperror.New(apperror.ErrCodeValidation, "сумма не может быть отрицательной")
	}
	if currency == "" {
		currency = "USD"
	}
	return Money{Amount: amount, Currency: currency}, nil
}

// Display переводит минимальные единицы в основные для ответов API.
func (m Money) Display() string {
	return decimal.New(m.Amount, -2).StringFixed(2)
}

// FeeSplit - разбиение суммы заказа на комиссию платформы и заработок продавца.
type FeeSplit struct {
	Total          int64
	FeePercent     int
	PlatformFee    int64
	SellerEarnings int64
}

// SplitFee считает комиссию как floor(total * percent / 100), остаток уходит продавцу.
func SplitFee(total int64, percent int) (FeeSplit, error) {
	if total <= 0 {
		return FeeSplit{}, apperror.New(apperror.ErrCodeValidation, "сумма заказа должна быть положительной")
	}
	if percent < 0 || percent > 100 {
		return FeeSplit{}, apperror.New(apperror.ErrCodeValidation, "процент комиссии должен быть от 0 до 100")
	}

	fee := total * int64(percent) / 100
	split := FeeSplit{
		Total:          total,
		FeePercent:     percent,
		PlatformFee:    fee,
		SellerEarnings: total - fee,
	}
	if err := split.Verify(); err != nil {
		return FeeSplit{}, err
	}
	return split, nil
}

// Verify проверяет инвариант fee + earnings == total.
func (s FeeSplit) Verify() error {
	if s.PlatformFee < 0 || s.SellerEarnings < 0 || s.PlatformFee+s.SellerEarnings != s.Total {
		return apperror.Consistency("fee split: %d + %d != %d", s.PlatformFee, s.SellerEarnings, s.Total)
	}
	return nil
}
