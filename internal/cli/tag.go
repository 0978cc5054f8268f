package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/expfactory/internal/ports/primary"
	"github.com/example/expfactory/internal/wire"
)

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Manage tags (labels for experiments and subjects)",
	Long:  "Create, list, show, and delete tags, and attach them to experiments and subjects",
}

var tagCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a new tag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		name := args[0]
		description, _ := cmd.Flags().GetString("description")

		resp, err := wire.TagService().CreateTag(ctx, primary.CreateTagRequest{
			Name:        name,
			Description: description,
		})
		if err != nil {
			return fmt.Errorf("failed to create tag: %w", err)
		}

		tag := resp.Tag
		fmt.Printf("✓ Created tag %s: %s\n", tag.ID, tag.Name)
		if tag.Description != "" {
			fmt.Printf("  Description: %s\n", tag.Description)
		}
		return nil
	},
}

var tagListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all tags",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		tags, err := wire.TagService().ListTags(ctx)
		if err != nil {
			return fmt.Errorf("failed to list tags: %w", err)
		}

		if len(tags) == 0 {
			fmt.Println("No tags found")
			return nil
		}

		fmt.Printf("Found %d tag(s):\n\n", len(tags))
		for _, tag := range tags {
			fmt.Printf("%-10s %s", tag.ID, tag.Name)
			if tag.Description != "" {
				fmt.Printf(" - %s", tag.Description)
			}
			fmt.Println()
		}
		return nil
	},
}

var tagShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show tag details and tagged experiments and subjects",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		name := args[0]

		tag, err := wire.TagService().GetTagByName(ctx, name)
		if err != nil {
			return fmt.Errorf("tag not found: %w", err)
		}

		fmt.Printf("Tag: %s (%s)\n", tag.Name, tag.ID)
		if tag.Description != "" {
			fmt.Printf("Description: %s\n", tag.Description)
		}
		fmt.Printf("Created: %s\n", tag.CreatedAt)
		fmt.Println()

		exps, err := wire.ExperimentService().ListExperimentRepos(ctx, primary.ExperimentRepoFilters{Tag: name})
		if err != nil {
			return fmt.Errorf("failed to get experiments: %w", err)
		}
		if len(exps) == 0 {
			fmt.Println("No experiments tagged with this tag")
		} else {
			fmt.Printf("Experiments (%d):\n", len(exps))
			for _, e := range exps {
				fmt.Printf("  %s: %s\n", e.ID, e.Name)
			}
		}

		subjects, err := wire.SubjectService().ListSubjects(ctx, primary.SubjectFilters{Tag: name})
		if err != nil {
			return fmt.Errorf("failed to get subjects: %w", err)
		}
		if len(subjects) > 0 {
			fmt.Printf("Subjects (%d):\n", len(subjects))
			for _, s := range subjects {
				fmt.Printf("  %s: %s\n", s.ID, s.UUID)
			}
		}

		return nil
	},
}

var tagDeleteCmd = &cobra.Command{
	Use:   "delete [name]",
	Short: "Delete a tag (removes it everywhere)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		name := args[0]

		tag, err := wire.TagService().GetTagByName(ctx, name)
		if err != nil {
			return fmt.Errorf("tag not found: %w", err)
		}

		// Delete the tag (cascade removes entity_tags)
		if err := wire.TagService().DeleteTag(ctx, tag.ID); err != nil {
			return fmt.Errorf("failed to delete tag: %w", err)
		}

		fmt.Printf("✓ Deleted tag: %s\n", name)
		return nil
	},
}

var tagAddCmd = &cobra.Command{
	Use:   "add [name] [experiment|subject] [id...]",
	Short: "Attach a tag to experiments or subjects",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		entityType, err := tagEntityType(args[1])
		if err != nil {
			return err
		}
		if err := wire.TagService().TagEntities(NewContext(), entityType, args[0], args[2:]); err != nil {
			return fmt.Errorf("failed to tag: %w", err)
		}
		fmt.Printf("✓ Tagged %d %s(s) with %s\n", len(args)-2, args[1], args[0])
		return nil
	},
}

var tagRemoveCmd = &cobra.Command{
	Use:   "remove [name] [experiment|subject] [id]",
	Short: "Detach a tag from an experiment or subject",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		entityType, err := tagEntityType(args[1])
		if err != nil {
			return err
		}
		if err := wire.TagService().UntagEntity(NewContext(), entityType, args[2], args[0]); err != nil {
			return fmt.Errorf("failed to untag: %w", err)
		}
		fmt.Printf("✓ Removed %s from %s\n", args[0], args[2])
		return nil
	},
}

func tagEntityType(kind string) (string, error) {
	switch kind {
	case "experiment", primary.TagEntityExperiment:
		return primary.TagEntityExperiment, nil
	case primary.TagEntitySubject:
		return primary.TagEntitySubject, nil
	default:
		return "", fmt.Errorf("cannot tag %q: expected experiment or subject", kind)
	}
}

func init() {
	// tag create flags
	tagCreateCmd.Flags().StringP("description", "d", "", "Tag description")

	// Register subcommands
	tagCmd.AddCommand(tagCreateCmd)
	tagCmd.AddCommand(tagListCmd)
	tagCmd.AddCommand(tagShowCmd)
	tagCmd.AddCommand(tagDeleteCmd)
	tagCmd.AddCommand(tagAddCmd)
	tagCmd.AddCommand(tagRemoveCmd)
}

// TagCmd returns the tag command
func TagCmd() *cobra.Command {
	return tagCmd
}
