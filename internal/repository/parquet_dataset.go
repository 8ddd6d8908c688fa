package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"

	"TrendLab/internal/domain/models"
	domrepo "TrendLab/internal/domain/repository"
)

var _ domrepo.DatasetWriter = (*ParquetDataset)(nil)

// EpisodeRecord is the Parquet schema of a training export row.
// Optional columns are indicators that may not have warmed up.
type EpisodeRecord struct {
	Ticker    string `parquet:"ticker"`
	EpisodeID string `parquet:"episode_id"`
	StartTime int64  `parquet:"start_time,timestamp(millisecond)"`
	EndTime   int64  `parquet:"end_time,timestamp(millisecond)"`
	Duration  int32  `parquet:"duration"`

	Direction    string  `parquet:"direction"`
	TrendQuality string  `parquet:"trend_quality"`
	Label        string  `parquet:"label"`
	TotalReturn  float64 `parquet:"total_return"`
	LRSlope      float64 `parquet:"lr_slope_5"`
	LRSlopeNorm  float64 `parquet:"lr_slope_5_norm"`
	LRFitR2      float64 `parquet:"lr_fit_r2_5"`

	AvgVolume         float64  `parquet:"avg_volume"`
	AvgVolumeNorm     float64  `parquet:"avg_volume_norm"`
	MaxVolume         float64  `parquet:"max_volume"`
	AvgRSI            *float64 `parquet:"avg_rsi,optional"`
	AvgRSINorm        *float64 `parquet:"avg_rsi_norm,optional"`
	AvgVolatility     float64  `parquet:"avg_volatility"`
	AvgVolatilityNorm float64  `parquet:"avg_volatility_norm"`
	OBVChange         float64  `parquet:"obv_change"`
	OBVChangeNorm     float64  `parquet:"obv_change_norm"`
	AvgVWAP           *float64 `parquet:"avg_vwap,optional"`
	AvgVWAPNorm       *float64 `parquet:"avg_vwap_norm,optional"`

	PriceStart     float64 `parquet:"price_start"`
	PriceEnd       float64 `parquet:"price_end"`
	PriceDelta     float64 `parquet:"price_delta"`
	PriceStartNorm float64 `parquet:"price_start_norm"`
	PriceEndNorm   float64 `parquet:"price_end_norm"`

	RSIStart      *float64 `parquet:"rsi_start,optional"`
	RSIEnd        *float64 `parquet:"rsi_end,optional"`
	RSIStartNorm  *float64 `parquet:"rsi_start_norm,optional"`
	RSIEndNorm    *float64 `parquet:"rsi_end_norm,optional"`
	VWAPStart     *float64 `parquet:"vwap_start,optional"`
	VWAPEnd       *float64 `parquet:"vwap_end,optional"`
	VWAPStartNorm *float64 `parquet:"vwap_start_norm,optional"`
	VWAPEndNorm   *float64 `parquet:"vwap_end_norm,optional"`
	OBVStart      *float64 `parquet:"obv_start,optional"`
	OBVEnd        *float64 `parquet:"obv_end,optional"`
	OBVStartNorm  *float64 `parquet:"obv_start_norm,optional"`
	OBVEndNorm    *float64 `parquet:"obv_end_norm,optional"`
	EMAStart      *float64 `parquet:"ema_start,optional"`
	EMAEnd        *float64 `parquet:"ema_end,optional"`
	EMAStartNorm  *float64 `parquet:"ema_start_norm,optional"`
	EMAEndNorm    *float64 `parquet:"ema_end_norm,optional"`

	StartFeatures string `parquet:"start_features"`
	EndFeatures   string `parquet:"end_features"`
}

// ParquetDataset writes episode exports as Parquet files.
type ParquetDataset struct{}

func NewParquetDataset() *ParquetDataset { return &ParquetDataset{} }

func (d *ParquetDataset) WriteEpisodes(ctx context.Context, path string, episodes []models.Episode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	records := make([]EpisodeRecord, 0, len(episodes))
	for i := range episodes {
		r, err := toEpisodeRecord(&episodes[i])
		if err != nil {
			return err
		}
		records = append(records, r)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := parquet.WriteFile(path, records); err != nil {
		return fmt.Errorf("write parquet %s: %w", path, err)
	}
	return nil
}

func (d *ParquetDataset) ReadEpisodes(ctx context.Context, path string) ([]models.Episode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := parquet.ReadFile[EpisodeRecord](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	out := make([]models.Episode, 0, len(rows))
	for i := range rows {
		ep, err := fromEpisodeRecord(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	return out, nil
}

func toEpisodeRecord(ep *models.Episode) (EpisodeRecord, error) {
	startF, err := encodeBar(ep.StartFeatures)
	if err != nil {
		return EpisodeRecord{}, err
	}
	endF, err := encodeBar(ep.EndFeatures)
	if err != nil {
		return EpisodeRecord{}, err
	}
	return EpisodeRecord{
		Ticker:    ep.Ticker,
		EpisodeID: ep.EpisodeID,
		StartTime: ep.StartTime.UnixMilli(),
		EndTime:   ep.EndTime.UnixMilli(),
		Duration:  int32(ep.Duration),

		Direction:    string(ep.Direction),
		TrendQuality: string(ep.TrendQuality),
		Label:        ep.CompositeLabel(),
		TotalReturn:  ep.TotalReturn,
		LRSlope:      ep.LRSlope,
		LRSlopeNorm:  ep.LRSlopeNorm,
		LRFitR2:      ep.LRFitR2,

		AvgVolume:         ep.AvgVolume,
		AvgVolumeNorm:     ep.AvgVolumeNorm,
		MaxVolume:         ep.MaxVolume,
		AvgRSI:            ep.AvgRSI,
		AvgRSINorm:        ep.AvgRSINorm,
		AvgVolatility:     ep.AvgVolatility,
		AvgVolatilityNorm: ep.AvgVolatilityNorm,
		OBVChange:         ep.OBVChange,
		OBVChangeNorm:     ep.OBVChangeNorm,
		AvgVWAP:           ep.AvgVWAP,
		AvgVWAPNorm:       ep.AvgVWAPNorm,

		PriceStart:     ep.PriceStart,
		PriceEnd:       ep.PriceEnd,
		PriceDelta:     ep.PriceDelta,
		PriceStartNorm: ep.PriceStartNorm,
		PriceEndNorm:   ep.PriceEndNorm,

		RSIStart:      ep.RSIStart,
		RSIEnd:        ep.RSIEnd,
		RSIStartNorm:  ep.RSIStartNorm,
		RSIEndNorm:    ep.RSIEndNorm,
		VWAPStart:     ep.VWAPStart,
		VWAPEnd:       ep.VWAPEnd,
		VWAPStartNorm: ep.VWAPStartNorm,
		VWAPEndNorm:   ep.VWAPEndNorm,
		OBVStart:      ep.OBVStart,
		OBVEnd:        ep.OBVEnd,
		OBVStartNorm:  ep.OBVStartNorm,
		OBVEndNorm:    ep.OBVEndNorm,
		EMAStart:      ep.EMAStart,
		EMAEnd:        ep.EMAEnd,
		EMAStartNorm:  ep.EMAStartNorm,
		EMAEndNorm:    ep.EMAEndNorm,

		StartFeatures: startF,
		EndFeatures:   endF,
	}, nil
}

func fromEpisodeRecord(r *EpisodeRecord) (models.Episode, error) {
	startF, err := decodeBar(r.StartFeatures)
	if err != nil {
		return models.Episode{}, err
	}
	endF, err := decodeBar(r.EndFeatures)
	if err != nil {
		return models.Episode{}, err
	}
	return models.Episode{
		Ticker:    r.Ticker,
		EpisodeID: r.EpisodeID,
		StartTime: time.UnixMilli(r.StartTime).UTC(),
		EndTime:   time.UnixMilli(r.EndTime).UTC(),
		Duration:  int(r.Duration),

		Direction:    models.Direction(r.Direction),
		TrendQuality: models.TrendQuality(r.TrendQuality),
		TotalReturn:  r.TotalReturn,
		LRSlope:      r.LRSlope,
		LRSlopeNorm:  r.LRSlopeNorm,
		LRFitR2:      r.LRFitR2,

		AvgVolume:         r.AvgVolume,
		AvgVolumeNorm:     r.AvgVolumeNorm,
		MaxVolume:         r.MaxVolume,
		AvgRSI:            r.AvgRSI,
		AvgRSINorm:        r.AvgRSINorm,
		AvgVolatility:     r.AvgVolatility,
		AvgVolatilityNorm: r.AvgVolatilityNorm,
		OBVChange:         r.OBVChange,
		OBVChangeNorm:     r.OBVChangeNorm,
		AvgVWAP:           r.AvgVWAP,
		AvgVWAPNorm:       r.AvgVWAPNorm,

		PriceStart:     r.PriceStart,
		PriceEnd:       r.PriceEnd,
		PriceDelta:     r.PriceDelta,
		PriceStartNorm: r.PriceStartNorm,
		PriceEndNorm:   r.PriceEndNorm,

		RSIStart:      r.RSIStart,
		RSIEnd:        r.RSIEnd,
		RSIStartNorm:  r.RSIStartNorm,
		RSIEndNorm:    r.RSIEndNorm,
		VWAPStart:     r.VWAPStart,
		VWAPEnd:       r.VWAPEnd,
		VWAPStartNorm: r.VWAPStartNorm,
		VWAPEndNorm:   r.VWAPEndNorm,
		OBVStart:      r.OBVStart,
		OBVEnd:        r.OBVEnd,
		OBVStartNorm:  r.OBVStartNorm,
		OBVEndNorm:    r.OBVEndNorm,
		EMAStart:      r.EMAStart,
		EMAEnd:        r.EMAEnd,
		EMAStartNorm:  r.EMAStartNorm,
		EMAEndNorm:    r.EMAEndNorm,

		StartFeatures: startF,
		EndFeatures:   endF,
	}, nil
}

func encodeBar(b *models.EnrichedBar) (string, error) {
	if b == nil {
		return "", nil
	}
	raw, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("encode bar: %w", err)
	}
	return string(raw), nil
}

func decodeBar(s string) (*models.EnrichedBar, error) {
	if s == "" {
		return nil, nil
	}
	var b models.EnrichedBar
	if err := json.Unmarshal([]byte(s), &b); err != nil {
		return nil, fmt.Errorf("decode bar: %w", err)
	}
	return &b, nil
}
