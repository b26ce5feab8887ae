package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/cppla/folio/models"
	"github.com/cppla/folio/utils"
)

const welcomeSlug = "welcome"

const welcomeBody = `# Welcome to Folio

Posts are written in **Markdown**. Raw HTML is shown as text, while embeds from
YouTube, Vimeo and Spotify can be pasted as iframes:

<iframe src="https://www.youtube.com/embed/dQw4w9WgXcQ"></iframe>

Edit or delete this post from the admin API.`

var (
	seedUsername string
	seedPassword string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the admin user and a welcome post",
	Long: `Create the admin user and a welcome post. Running it again changes nothing.

The password comes from --password or FOLIO_ADMIN_PASSWORD. Add the username
to admin.usernames so it can manage posts.`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedUsername, "username", "admin", "admin username")
	seedCmd.Flags().StringVar(&seedPassword, "password", "", "admin password (default $FOLIO_ADMIN_PASSWORD)")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	password := seedPassword
	if password == "" {
		password = os.Getenv("FOLIO_ADMIN_PASSWORD")
	}
	if len(password) < utils.MinPasswordLength {
		return fmt.Errorf("admin password must be at least %d characters", utils.MinPasswordLength)
	}

	db, err := bootstrap()
	if err != nil {
		return err
	}

	admin, created, err := seedAdmin(db, seedUsername, password)
	if err != nil {
		return err
	}
	if created {
		cmd.Printf("created user %s\n", admin.Username)
	}
	if !cfg.IsAdmin(admin.Username) {
		cmd.Printf("warning: %s is not listed under admin.usernames\n", admin.Username)
	}

	created, err = seedWelcomePost(db, admin.ID)
	if err != nil {
		return err
	}
	if created {
		cmd.Printf("created post /%s\n", welcomeSlug)
	}
	return nil
}

func seedAdmin(db *gorm.DB, username, password string) (models.User, bool, error) {
	var user models.User
	err := db.Where("username = ?", username).First(&user).Error
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return user, false, fmt.Errorf("lookup %s: %w", username, err)
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return user, false, err
	}
	user = models.User{
		Username:     username,
		DisplayName:  username,
		PasswordHash: hash,
		Provider:     "local",
	}
	if err := db.Create(&user).Error; err != nil {
		return user, false, fmt.Errorf("create %s: %w", username, err)
	}
	return user, true, nil
}

func seedWelcomePost(db *gorm.DB, authorID uint) (bool, error) {
	var count int64
	if err := db.Model(&models.Post{}).Where("slug = ?", welcomeSlug).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	post := models.Post{
		UserID:    authorID,
		Title:     "Welcome to Folio",
		Slug:      welcomeSlug,
		Body:      welcomeBody,
		Published: true,
	}
	if err := db.Create(&post).Error; err != nil {
		return false, fmt.Errorf("create welcome post: %w", err)
	}
	return true, nil
}
