package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/Kaleub/kaleub-back/internal/bootstrap"
	"github.com/Kaleub/kaleub-back/internal/dto"
	gormpersistence "github.com/Kaleub/kaleub-back/internal/infra/persistence/gorm"
	"github.com/Kaleub/kaleub-back/internal/infra/setup"
)

// 一个简单的命令行工具，用于迁移数据库和查看房间、用户

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.SetOutput(os.Stderr)

	var db *gorm.DB
	openDB := func(cmd *cobra.Command, args []string) error {
		var err error
		db, err = setup.InitDB(bootstrap.LoadDBConfig())
		return err
	}

	var cmdMigrate = &cobra.Command{
		Use:     "migrate",
		Short:   "Create or update database tables",
		Args:    cobra.NoArgs,
		PreRunE: openDB,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setup.MigrateDB(db); err != nil {
				return err
			}
			logrus.Info("Database migrated")
			return nil
		},
	}

	var cmdShow = &cobra.Command{
		Use:   "show",
		Short: "Show rooms or users",
		Long:  `show is for printing room or user information.`,
	}
	var cmdShowRooms = &cobra.Command{
		Use:     "rooms",
		Short:   "List all rooms",
		Args:    cobra.NoArgs,
		PreRunE: openDB,
		RunE: func(cmd *cobra.Command, args []string) error {
			rooms, err := gormpersistence.NewGormRoomRepository(db).FindAll(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(dto.NewRoomResponses(rooms))
		},
	}
	var cmdShowRoom = &cobra.Command{
		Use:     "room [id]",
		Short:   "Show one room with its participants",
		Args:    cobra.ExactArgs(1),
		PreRunE: openDB,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid room id %q", args[0])
			}
			room, err := gormpersistence.NewGormRoomRepository(db).FindByID(cmd.Context(), uint(id))
			if err != nil {
				return err
			}
			users, err := gormpersistence.NewGormParticipationRepository(db).FindUsersByRoom(cmd.Context(), room.ID)
			if err != nil {
				return err
			}
			return printJSON(dto.NewRoomDetailResponse(room, users))
		},
	}
	var cmdShowUsers = &cobra.Command{
		Use:     "users",
		Short:   "List all users",
		Args:    cobra.NoArgs,
		PreRunE: openDB,
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := gormpersistence.NewGormUserRepository(db).FindAll(cmd.Context())
			if err != nil {
				return err
			}
			out := make([]dto.UserResponse, len(users))
			for i := range users {
				out[i] = dto.NewUserResponse(&users[i])
			}
			return printJSON(out)
		},
	}

	var cmdReconcile = &cobra.Command{
		Use:     "reconcile",
		Short:   "Recount participants of every room",
		Args:    cobra.NoArgs,
		PreRunE: openDB,
		RunE: func(cmd *cobra.Command, args []string) error {
			fixed, err := gormpersistence.NewGormRoomRepository(db).ReconcileParticipantsCounts(cmd.Context())
			if err != nil {
				return err
			}
			logrus.WithField("rooms_fixed", fixed).Info("Participants counts reconciled")
			return nil
		},
	}

	var rootCmd = &cobra.Command{
		Use:          "photory-admin",
		Short:        "Administration tool for the photory backend",
		SilenceUsage: true,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if db == nil {
				return
			}
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		},
	}
	cmdShow.AddCommand(cmdShowRooms, cmdShowRoom, cmdShowUsers)
	rootCmd.AddCommand(cmdMigrate, cmdShow, cmdReconcile)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
