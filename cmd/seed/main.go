// Command seed готовит базу планировщика к работе: создаёт администратора и
// пользователей, сохраняет правило начисления монет и настройки тарифов и
// печатает JWT для каждой созданной учётной записи.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/magabrotheeeer/coin-planner/internal/app/bootstrap"
	"github.com/magabrotheeeer/coin-planner/internal/config"
	"github.com/magabrotheeeer/coin-planner/internal/lib/sl"
	"github.com/magabrotheeeer/coin-planner/internal/models"
	"github.com/magabrotheeeer/coin-planner/internal/services/coinrule"
	"github.com/magabrotheeeer/coin-planner/internal/services/settings"
	"github.com/magabrotheeeer/coin-planner/internal/services/user"
)

func main() {
	var (
		admin              = flag.String("admin", "admin@example.com", "email администратора")
		users              = flag.String("users", "", "email пользователей через запятую")
		taskCoins          = flag.Int("task-coins", 10, "монеты за выполненную задачу")
		freeSubsCoins      = flag.Int("free-subs-coins", 300, "порог бесплатного месяца подписки")
		addPastRemarkCoins = flag.Int("past-remark-coins", 5, "плата за отметку прошедшего дня")
		startNewPlanCoins  = flag.Int("new-plan-coins", 20, "бонус за новый план")
		extraCoins         = flag.Int("extra-coins", 15, "бонус за полностью выполненный план")
		planLimit          = flag.Int("plan-limit", 1, "лимит активных планов")
	)
	flag.Parse()

	cfg := config.MustLoad()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx := context.Background()

	deps, err := bootstrap.Open(ctx, cfg, logger, bootstrap.Options{Migrate: true, Cache: true})
	if err != nil {
		logger.Error("failed to open dependencies", sl.Err(err))
		os.Exit(1)
	}
	defer deps.Close()
	svc := bootstrap.NewServices(deps, cfg)

	defaults := models.DefaultSettings()
	if _, err := svc.Settings.Update(ctx, settings.UpdateRequest{Tiers: &defaults.Tiers, PlanLimit: planLimit}); err != nil {
		logger.Error("failed to save settings", sl.Err(err))
		os.Exit(1)
	}
	rule, err := svc.Rules.Upsert(ctx, coinrule.UpsertRequest{
		TaskCoins:          taskCoins,
		FreeSubsCoins:      freeSubsCoins,
		AddPastRemarkCoins: addPastRemarkCoins,
		StartNewPlanCoins:  startNewPlanCoins,
		ExtraCoins:         extraCoins,
	})
	if err != nil {
		logger.Error("failed to save coin rule", sl.Err(err))
		os.Exit(1)
	}
	logger.Info("coin rule saved", slog.Int("task_coins", rule.TaskCoins), slog.Int("free_subs_coins", rule.FreeSubsCoins))

	accounts := []user.ProvisionRequest{{Email: *admin, Username: "admin", Role: models.RoleAdmin}}
	for _, email := range strings.Split(*users, ",") {
		email = strings.TrimSpace(email)
		if email == "" {
			continue
		}
		name, _, _ := strings.Cut(email, "@")
		accounts = append(accounts, user.ProvisionRequest{Email: email, Username: name})
	}

	failed := false
	for _, req := range accounts {
		if err := provision(ctx, svc.Users, req); err != nil {
			logger.Error("failed to provision user", slog.String("email", req.Email), sl.Err(err))
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func provision(ctx context.Context, users *user.Service, req user.ProvisionRequest) error {
	u, err := users.Provision(ctx, req)
	if err != nil {
		return err
	}
	token, err := users.IssueToken(u)
	if err != nil {
		return err
	}
	fmt.Printf("%s\t%s\t%s\t%s\n", u.UID, u.Email, u.Role, token)
	return nil
}
