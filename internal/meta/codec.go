package meta

import (
	"strconv"
	"strings"
	"time"
)

// Durable record layout: eight fields joined by '|', timestamps as seconds
// since epoch. The content hash never contains the delimiter.
//
//	lastCrawl|prevChange|expectedNext|hash|backoff|crawls|changeFreq|failures
const fieldCount = 8

// Serialize encodes a record into its durable form.
func Serialize(m URLMetadata) string {
	var sb strings.Builder
	sb.WriteString(strconv.FormatInt(m.LastCrawlAt.Unix(), 10))
	sb.WriteByte('|')
	sb.WriteString(strconv.FormatInt(m.PreviousChangeAt.Unix(), 10))
	sb.WriteByte('|')
	sb.WriteString(strconv.FormatInt(m.ExpectedNextCrawl.Unix(), 10))
	sb.WriteByte('|')
	sb.WriteString(m.ContentHash)
	sb.WriteByte('|')
	sb.WriteString(strconv.Itoa(m.BackoffMultiplier))
	sb.WriteByte('|')
	sb.WriteString(strconv.Itoa(m.CrawlCount))
	sb.WriteByte('|')
	sb.WriteString(strconv.FormatFloat(m.ChangeFrequency, 'g', -1, 64))
	sb.WriteByte('|')
	sb.WriteString(strconv.Itoa(m.TemporaryFailures))
	return sb.String()
}

// Deserialize decodes a durable record. Partial or malformed values yield
// the default record for now, so a corrupt entry degrades to "new URL"
// instead of poisoning the schedule.
func Deserialize(value string, now time.Time) URLMetadata {
	parts := strings.Split(value, "|")
	if len(parts) != fieldCount {
		return NewURLMetadata(now)
	}

	lastCrawl, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return NewURLMetadata(now)
	}
	prevChange, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return NewURLMetadata(now)
	}
	expectedNext, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return NewURLMetadata(now)
	}
	backoff, err := strconv.Atoi(parts[4])
	if err != nil {
		return NewURLMetadata(now)
	}
	crawls, err := strconv.Atoi(parts[5])
	if err != nil {
		return NewURLMetadata(now)
	}
	changeFreq, err := strconv.ParseFloat(parts[6], 64)
	if err != nil {
		return NewURLMetadata(now)
	}
	failures, err := strconv.Atoi(parts[7])
	if err != nil {
		return NewURLMetadata(now)
	}

	return URLMetadata{
		LastCrawlAt:       time.Unix(lastCrawl, 0),
		PreviousChangeAt:  time.Unix(prevChange, 0),
		ExpectedNextCrawl: time.Unix(expectedNext, 0),
		ContentHash:       parts[3],
		BackoffMultiplier: backoff,
		CrawlCount:        crawls,
		ChangeFrequency:   changeFreq,
		TemporaryFailures: failures,
	}
}
