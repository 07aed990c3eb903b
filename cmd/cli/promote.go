package main

import (
	"fmt"

	"github.com/mistapp/backend/internal/database"
	"github.com/mistapp/backend/internal/models"
	"github.com/spf13/cobra"
)

var promoteRevoke bool

var promoteCmd = &cobra.Command{
	Use:   "promote <email-or-username>",
	Short: "Grant (or with --revoke, remove) superuser privileges",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		var user models.User
		err = db.WithContext(cmd.Context()).
			Where("LOWER(email) = LOWER(?) OR LOWER(username) = LOWER(?)", args[0], args[0]).
			First(&user).Error
		if database.IsNotFound(err) {
			return fmt.Errorf("user not found: %s", args[0])
		}
		if err != nil {
			return err
		}

		grant := !promoteRevoke
		if user.IsSuperuser == grant {
			fmt.Println(warning(fmt.Sprintf("%s is already %s", user.Username, roleName(grant))))
			return nil
		}
		if err := db.Model(&user).UpdateColumn("is_superuser", grant).Error; err != nil {
			return err
		}
		fmt.Println(success(fmt.Sprintf("%s is now %s", user.Username, roleName(grant))))
		return nil
	},
}

func roleName(superuser bool) string {
	if superuser {
		return "a superuser"
	}
	return "a regular user"
}

func init() {
	promoteCmd.Flags().BoolVar(&promoteRevoke, "revoke", false, "Revoke superuser privileges instead of granting")
}
