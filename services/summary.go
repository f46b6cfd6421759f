package services

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"land-crawler/models"
	"land-crawler/utils"
)

type SummaryService struct {
	logger *utils.Logger
}

func NewSummaryService(logger *utils.Logger) *SummaryService {
	return &SummaryService{logger: logger}
}

func (s *SummaryService) Generate(results []models.TargetResult) *models.RunSummary {
	r := &models.RunSummary{
		TargetsTotal: len(results),
		ByTradeType:  make(map[string]int),
	}

	var total int64
	for _, res := range results {
		line := models.TargetSummary{Target: res.Target, Error: res.Error}
		if res.Overview != nil {
			line.Name = res.Overview.ComplexName
		}
		if res.Failed() {
			r.Failed++
		} else {
			r.Succeeded++
		}

		if res.Articles != nil {
			line.Items = len(res.Articles.Items)
			for _, item := range res.Articles.Items {
				if tt, ok := item.Field("tradeTypeName"); ok && tt != "" {
					r.ByTradeType[tt]++
				}
				raw, _ := item.Field("dealOrWarrantPrc")
				won := ParsePriceToWon(raw)
				if won <= 0 {
					continue
				}
				total += won
				if r.PricedItems == 0 || won < r.MinPriceWon {
					r.MinPriceWon = won
				}
				if won > r.MaxPriceWon {
					r.MaxPriceWon = won
				}
				r.PricedItems++
			}
		}
		r.TotalItems += line.Items
		r.ByTarget = append(r.ByTarget, line)
	}

	if r.PricedItems > 0 {
		r.AvgPriceWon = total / int64(r.PricedItems)
	}
	s.logger.Debug("[summary] %d targets, %d items, %d priced", r.TargetsTotal, r.TotalItems, r.PricedItems)
	return r
}

func (s *SummaryService) Print(r *models.RunSummary) {
	s.Fprint(os.Stdout, r)
}

func (s *SummaryService) Fprint(w io.Writer, r *models.RunSummary) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  🏢 COMPLEX CRAWL SUMMARY\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Complexes processed : \033[1m%d\033[0m\n", r.TargetsTotal)
	fmt.Fprintf(w, "  Succeeded           : \033[1;32m%d\033[0m\n", r.Succeeded)
	fmt.Fprintf(w, "  Failed              : \033[1;31m%d\033[0m\n", r.Failed)
	fmt.Fprintf(w, "  Listings collected  : \033[1m%d\033[0m\n", r.TotalItems)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Listings by Complex\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	for _, t := range r.ByTarget {
		name := t.Name
		if name == "" {
			name = "-"
		}
		if t.Error != "" {
			fmt.Fprintf(w, "  %-10s %-28s \033[1;31merror: %s\033[0m\n", t.Target, truncate(name, 26), truncate(t.Error, 40))
			continue
		}
		fmt.Fprintf(w, "  %-10s %-28s %d\n", t.Target, truncate(name, 26), t.Items)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Listings by Trade Type\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.ByTradeType) == 0 {
		fmt.Fprintf(w, "  No trade type data\n")
	} else {
		type tradeCount struct {
			name  string
			count int
		}
		var trades []tradeCount
		for name, cnt := range r.ByTradeType {
			trades = append(trades, tradeCount{name, cnt})
		}
		sort.Slice(trades, func(i, j int) bool {
			if trades[i].count != trades[j].count {
				return trades[i].count > trades[j].count
			}
			return trades[i].name < trades[j].name
		})
		for _, tc := range trades {
			fmt.Fprintf(w, "  %-12s %5d\n", tc.name, tc.count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Price Statistics (deal / deposit)\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.PricedItems > 0 {
		fmt.Fprintf(w, "  Average : \033[1;32m%s\033[0m\n", FormatWon(r.AvgPriceWon))
		fmt.Fprintf(w, "  Minimum : \033[1;32m%s\033[0m\n", FormatWon(r.MinPriceWon))
		fmt.Fprintf(w, "  Maximum : \033[1;32m%s\033[0m\n", FormatWon(r.MaxPriceWon))
	} else {
		fmt.Fprintf(w, "  No price data available\n")
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
