package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opsdesk/opsdesk/internal/config"
	"github.com/opsdesk/opsdesk/internal/utm"
)

var utmCmd = &cobra.Command{
	Use:   "utm",
	Short: "UTM link commands",
}

var utmBuildCmd = &cobra.Command{
	Use:   "build [url]",
	Short: "Build a tracking link",
	Args:  cobra.ExactArgs(1),
	RunE:  runUtmBuild,
}

var utmListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved links",
	RunE:  runUtmList,
}

var utmDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a saved link",
	Args:  cobra.ExactArgs(1),
	RunE:  runUtmDelete,
}

var utmQRCmd = &cobra.Command{
	Use:   "qr [url]",
	Short: "Write a QR code PNG for a link",
	Args:  cobra.ExactArgs(1),
	RunE:  runUtmQR,
}

var (
	utmPlatform string
	utmSource   string
	utmMedium   string
	utmCampaign string
	utmTerm     string
	utmContent  string
	utmLabel    string
	utmSave     bool
	qrOut       string
	qrSize      int
)

func init() {
	utmBuildCmd.Flags().StringVar(&utmPlatform, "platform", "", "Platform preset (youtube, instagram, facebook, twitter, linkedin, tiktok)")
	utmBuildCmd.Flags().StringVar(&utmSource, "source", "", "utm_source")
	utmBuildCmd.Flags().StringVar(&utmMedium, "medium", "", "utm_medium")
	utmBuildCmd.Flags().StringVar(&utmCampaign, "campaign", "", "utm_campaign")
	utmBuildCmd.Flags().StringVar(&utmTerm, "term", "", "utm_term")
	utmBuildCmd.Flags().StringVar(&utmContent, "content", "", "utm_content")
	utmBuildCmd.Flags().StringVar(&utmLabel, "label", "", "Label for the saved link")
	utmBuildCmd.Flags().BoolVar(&utmSave, "save", false, "Save the link for reuse")

	utmQRCmd.Flags().StringVarP(&qrOut, "out", "o", "qr.png", "Output file")
	utmQRCmd.Flags().IntVar(&qrSize, "size", 256, "Image size in pixels")

	utmCmd.AddCommand(utmBuildCmd)
	utmCmd.AddCommand(utmListCmd)
	utmCmd.AddCommand(utmDeleteCmd)
	utmCmd.AddCommand(utmQRCmd)

	utmCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/opsdesk/opsdesk.yaml", "Path to configuration file")
}

// linkStorePath keeps the link store next to the main database.
func linkStorePath() (string, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(cfg.Database.Path), "utm-links.db"), nil
}

func runUtmBuild(cmd *cobra.Command, args []string) error {
	form := utm.Form{
		Destination: args[0],
		Params: utm.Params{
			Source:   utmSource,
			Medium:   utmMedium,
			Campaign: utmCampaign,
			Term:     utmTerm,
			Content:  utmContent,
		},
	}
	if utmPlatform != "" {
		if utm.PresetByKey(utmPlatform) == nil {
			return fmt.Errorf("unknown platform %q", utmPlatform)
		}
		form.SetPlatform(utmPlatform)
	}

	link, ok := form.Link()
	if !ok {
		return fmt.Errorf("destination must be an absolute http or https URL")
	}

	fmt.Println(link)

	if !utmSave {
		return nil
	}

	path, err := linkStorePath()
	if err != nil {
		return err
	}
	store, err := utm.NewStore(path)
	if err != nil {
		return err
	}
	defer store.Close()

	saved := &utm.SavedLink{
		Label:       utmLabel,
		Destination: form.Destination,
		Platform:    form.Platform,
		Params:      form.Params,
		Link:        link,
	}
	if err := store.Save(saved); err != nil {
		return err
	}

	fmt.Printf("Saved as %s\n", saved.ID)
	return nil
}

func runUtmList(cmd *cobra.Command, args []string) error {
	path, err := linkStorePath()
	if err != nil {
		return err
	}
	store, err := utm.NewStore(path)
	if err != nil {
		return err
	}
	defer store.Close()

	links, err := store.List()
	if err != nil {
		return err
	}

	fmt.Printf("%-36s  %-20s  %-12s  %s\n", "ID", "Label", "Platform", "Link")
	fmt.Println(strings.Repeat("-", 100))
	for _, l := range links {
		fmt.Printf("%-36s  %-20s  %-12s  %s\n", l.ID, l.Label, l.Platform, l.Link)
	}

	return nil
}

func runUtmDelete(cmd *cobra.Command, args []string) error {
	path, err := linkStorePath()
	if err != nil {
		return err
	}
	store, err := utm.NewStore(path)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Delete(args[0]); err != nil {
		return err
	}

	fmt.Println("Deleted")
	return nil
}

func runUtmQR(cmd *cobra.Command, args []string) error {
	png, err := utm.QRPNG(args[0], qrSize)
	if err != nil {
		return err
	}

	if err := os.WriteFile(qrOut, png, 0644); err != nil {
		return err
	}

	fmt.Printf("Wrote %s (%d bytes)\n", qrOut, len(png))
	return nil
}
