package market

import (
	"fmt"
	"strings"
	"time"
)

// Cache keys embed a coarse time bucket so identical requests within the
// same bucket hit cache even across process restarts (given a shared
// store). Bucket granularity is the main lever behind the documented API
// call reduction: coarser buckets mean fewer recomputations.

// timeBucket truncates now to the bucket size and renders it as a key part
func timeBucket(now time.Time, size time.Duration) string {
	return fmt.Sprintf("%d", now.UTC().Truncate(size).Unix())
}

func leverageKey(symbol string, now time.Time) string {
	return fmt.Sprintf("market:leverage:%s_%s", strings.ToLower(symbol), timeBucket(now, 3*time.Hour))
}

func fundingKey(symbol string, now time.Time) string {
	return fmt.Sprintf("market:funding:%s_%s", strings.ToLower(symbol), timeBucket(now, 30*time.Minute))
}

func etfFlowKey(asset string, now time.Time) string {
	return fmt.Sprintf("market:etf:%s_%s", strings.ToLower(asset), timeBucket(now, 6*time.Hour))
}

func liquidityKey(timeframe string, now time.Time) string {
	return fmt.Sprintf("treasury_2s10s_%s_%s", strings.ToLower(timeframe), timeBucket(now, 6*time.Hour))
}

func rsiKey(symbol string, period int, timeframe string, now time.Time) string {
	return fmt.Sprintf("rsi_%s_%d_%s_%s", strings.ToUpper(symbol), period, strings.ToLower(timeframe), timeBucket(now, time.Hour))
}

// Golden dataset slots are keyed without the time bucket: one
// last-known-good value per logical data type.

func leverageDataType(symbol string) string {
	return "leverage_" + strings.ToLower(symbol)
}

func fundingDataType(symbol string) string {
	return "funding_" + strings.ToLower(symbol)
}

func etfFlowDataType(asset string) string {
	return "etf_flows_" + strings.ToLower(asset)
}

func liquidityDataType(timeframe string) string {
	return "liquidity_" + strings.ToLower(timeframe)
}

func rsiDataType(symbol string, period int, timeframe string) string {
	return fmt.Sprintf("rsi_%s_%d_%s", strings.ToLower(symbol), period, strings.ToLower(timeframe))
}
