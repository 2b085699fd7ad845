package fraud

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/gig-escrow/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/gig-escrow/internal/fingerprint"
)

// Оценщики чистые: всё, что им нужно, приходит аргументами. Без данных сигнала нет.

var botMarkers = []string{
	"headless", "phantomjs", "selenium", "webdriver", "puppeteer", "playwright",
	"crawler", "spider", "bot", "curl", "wget", "python-requests", "go-http-client",
	"scrapy", "httpclient",
}

// PriceCheck ловит нулевые, отрицательные и завышенные цены.
func PriceCheck(userID, gigID uuid.UUID, price, ceiling int64) *entity.FraudAlert {
	meta := map[string]any{"gig_id": gigID.String(), "price": price, "ceiling": ceiling}
	switch {
	case price <= 0:
		return entity.NewFraudAlert(userID, valueobject.FraudTypePriceManipulation, valueobject.SeverityHigh,
			"цена не положительна", meta)
	case ceiling > 0 && price > ceiling:
		return entity.NewFraudAlert(userID, valueobject.FraudTypePriceManipulation, valueobject.SeverityMedium,
			"цена выше потолка платформы", meta)
	}
	return nil
}

// DeviceCheck ищет признаки автоматизации в User-Agent без учёта регистра.
func DeviceCheck(userID uuid.UUID, fp fingerprint.Fingerprint) *entity.FraudAlert {
	ua := strings.ToLower(strings.TrimSpace(fp.UserAgent))
	meta := map[string]any{"device_hash": fp.DeviceHash, "user_agent": fp.UserAgent}

	if ua == "" || ua == "unknown" {
		return entity.NewFraudAlert(userID, valueobject.FraudTypeSuspiciousDevice, valueobject.SeverityMedium,
			"User-Agent отсутствует", meta)
	}
	for _, marker := range botMarkers {
		if strings.Contains(ua, marker) {
			meta["marker"] = marker
			return entity.NewFraudAlert(userID, valueobject.FraudTypeSuspiciousDevice, valueobject.SeverityMedium,
				"User-Agent похож на средство автоматизации", meta)
		}
	}
	return nil
}

// VelocityCheck считает события в окне [now-window, now]. Уровень растёт с кратностью превышения.
func VelocityCheck(userID uuid.UUID, typ valueobject.FraudType, subject string, timestamps []time.Time, now time.Time, window time.Duration, threshold int) *entity.FraudAlert {
	if len(timestamps) == 0 || threshold <= 0 {
		return nil
	}
	from := now.Add(-window)
	count := 0
	for _, ts := range timestamps {
		if !ts.Before(from) && !ts.After(now) {
			count++
		}
	}
	if count <= threshold {
		return nil
	}

	severity := valueobject.SeverityMedium
	switch {
	case count > 4*threshold:
		severity = valueobject.SeverityCritical
	case count > 2*threshold:
		severity = valueobject.SeverityHigh
	}
	return entity.NewFraudAlert(userID, typ, severity,
		fmt.Sprintf("%d событий за %s при пороге %d", count, window, threshold),
		map[string]any{"subject": subject, "count": count, "threshold": threshold, "window": window.String()})
}

type ReviewStats struct {
	Total    int
	Negative int
}

// ReviewBombingCheck: слишком много отзывов за окно или слишком большая доля негативных.
// Доля считается только на выборке не меньше minSample.
func ReviewBombingCheck(userID, gigID uuid.UUID, stats ReviewStats, volume int, negativeShare float64, minSample int) *entity.FraudAlert {
	if stats.Total == 0 {
		return nil
	}
	meta := map[string]any{"gig_id": gigID.String(), "total": stats.Total, "negative": stats.Negative}

	share := float64(stats.Negative) / float64(stats.Total)
	if stats.Total >= minSample && negativeShare > 0 && share > negativeShare {
		meta["negative_share"] = share
		return entity.NewFraudAlert(userID, valueobject.FraudTypeReviewBombing, valueobject.SeverityHigh,
			"аномальная доля негативных отзывов", meta)
	}
	if volume > 0 && stats.Total > volume {
		return entity.NewFraudAlert(userID, valueobject.FraudTypeReviewBombing, valueobject.SeverityMedium,
			"аномальное число отзывов за окно", meta)
	}
	return nil
}

// MaxSeverity - наивысший уровень среди сигналов; пустая строка, если сигналов нет.
func MaxSeverity(alerts []*entity.FraudAlert) valueobject.Severity {
	var top valueobject.Severity
	for _, a := range alerts {
		if a.Severity.Rank() > top.Rank() {
			top = a.Severity
		}
	}
	return top
}
