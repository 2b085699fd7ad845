// Package seed наполняет хранилище демо-данными для локальной разработки.
package seed

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignatzorin/gig-escrow/internal/auth"
	"github.com/ignatzorin/gig-escrow/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow/internal/domain/repository"
	"github.com/ignatzorin/gig-escrow/internal/domain/valueobject"
)

// Demo - созданная услуга и токены участников для ручной проверки API.
type Demo struct {
	Gig         *entity.Gig
	BuyerToken  string
	SellerToken string
	AdminToken  string
}

// Run создаёт опубликованную услугу с тремя пакетами и одной опцией и выпускает токены.
func Run(ctx context.Context, store repository.Store, tokens *auth.TokenManager, currency string) (*Demo, error) {
	sellerID := uuid.New()
	gigID := uuid.New()
	gig := &entity.Gig{
		ID:        gigID,
		SellerID:  sellerID,
		Title:     "Лендинг под ключ",
		Active:    true,
		Published: true,
		Currency:  currency,
		Packages: []entity.GigPackage{
			{ID: uuid.New(), GigID: gigID, Tier: "basic", Price: 5000},
			{ID: uuid.New(), GigID: gigID, Tier: "standard", Price: 12000},
			{ID: uuid.New(), GigID: gigID, Tier: "premium", Price: 25000},
		},
		Extras: []entity.GigExtra{
			{ID: uuid.New(), GigID: gigID, Title: "Срочно за 24 часа", Price: 1500},
		},
	}
	if err := store.Gigs().Create(ctx, gig); err != nil {
		return nil, fmt.Errorf("seed: не удалось создать услугу: %w", err)
	}

	demo := &Demo{Gig: gig}
	issued := []struct {
		dst  *string
		id   uuid.UUID
		role valueobject.Role
	}{
		{&demo.BuyerToken, uuid.New(), valueobject.RoleBuyer},
		{&demo.SellerToken, sellerID, valueobject.RoleSeller},
		{&demo.AdminToken, uuid.New(), valueobject.RoleAdmin},
	}
	for _, it := range issued {
		token, err := tokens.Issue(it.id, it.role)
		if err != nil {
			return nil, fmt.Errorf("seed: не удалось выпустить токен: %w", err)
		}
		*it.dst = token
	}
	return demo, nil
}
