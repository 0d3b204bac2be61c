package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/weisyn/esg-registry/client"
	"github.com/weisyn/esg-registry/client/core/config"
)

// reportQuery get/history 共用的解析结果
type reportQuery struct {
	client *client.Client
	owner  common.Address
	kpi    config.KPI
	year   uint16
}

func withReportArgs(ctx context.Context, ownerArg string, fn func(context.Context, reportQuery) error) error {
	owner, err := parseOwner(ownerArg)
	if err != nil {
		return err
	}
	c, err := newClient(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	kpi, err := lookupKPI(c.Profile(), reportKPI)
	if err != nil {
		return err
	}
	year, err := strconv.ParseUint(reportYear, 10, 16)
	if err != nil || year == 0 {
		return fmt.Errorf("无效的年份: %s", reportYear)
	}
	return fn(ctx, reportQuery{client: c, owner: owner, kpi: kpi, year: uint16(year)})
}

func lookupKPI(profile *config.Profile, ref string) (config.KPI, error) {
	kpi, ok := profile.FindKPI(ref)
	if !ok {
		return config.KPI{}, fmt.Errorf("未知的 KPI: %q (esg kpi list 查看可用指标)", ref)
	}
	return kpi, nil
}
