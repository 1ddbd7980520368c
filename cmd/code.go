package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/tabloom-cli/internal/coding"
	"github.com/KaramelBytes/tabloom-cli/internal/logging"
	"github.com/KaramelBytes/tabloom-cli/internal/study"
	"github.com/KaramelBytes/tabloom-cli/internal/survey"
	"github.com/KaramelBytes/tabloom-cli/internal/utils"
)

var (
	codeJobsFile string
	codeOutput   string
	codeDryRun   bool
)

type jobSpec struct {
	Question string                 `yaml:"question"`
	Prompt   string                 `yaml:"prompt"`
	Codebook []coding.CodebookEntry `yaml:"codebook"`
}

type jobsFile struct {
	Jobs []jobSpec `yaml:"jobs"`
}

type codedAnswer struct {
	Answer string   `json:"answer"`
	Codes  []string `json:"codes"`
}

type codedQuestion struct {
	JobID    string        `json:"job_id"`
	Question string        `json:"question"`
	Error    string        `json:"error,omitempty"`
	Answers  []codedAnswer `json:"answers,omitempty"`
}

var codeCmd = &cobra.Command{
	Use:   "code <study>",
	Short: "Code open-ended answers against a codebook with an LLM",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if codeJobsFile == "" {
			return errors.New("--jobs is required")
		}
		c, err := requireConfig()
		if err != nil {
			return err
		}
		root, err := defaultStudiesDir()
		if err != nil {
			return err
		}
		st, err := study.Open(root, args[0])
		if err != nil {
			return err
		}
		d, err := st.Read()
		if err != nil {
			return err
		}
		jobs, err := loadJobs(codeJobsFile, d.Dataset)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if codeDryRun {
			for _, j := range jobs {
				fmt.Fprintf(out, "- %s: %d answers, %d codes, timeout %s\n", j.QuestionCode, len(j.Answers), len(j.Codebook), c.RunOptions().Timeout(len(j.Answers)))
			}
			return nil
		}

		opt := c.RunOptions()
		opt.Logger = logging.Log
		results, err := coding.Run(cmd.Context(), coding.NewClient(c.ClientOptions()), jobs, opt)
		if err != nil {
			return err
		}
		report := make([]codedQuestion, len(results))
		failed := 0
		for i, r := range results {
			q := codedQuestion{JobID: r.JobID, Question: r.QuestionCode}
			if r.Err != nil {
				failed++
				q.Error = r.Err.Error()
				color.New(color.FgRed).Fprintf(cmd.ErrOrStderr(), "✗ %s: %v\n", r.QuestionCode, r.Err)
			}
			for k, a := range jobs[i].Answers {
				q.Answers = append(q.Answers, codedAnswer{Answer: a, Codes: r.Codes[k]})
			}
			report[i] = q
		}
		b, err := utils.PrettyJSON(report)
		if err != nil {
			return err
		}
		if codeOutput == "" {
			_, err = out.Write(append(b, '\n'))
			return err
		}
		if err := utils.SafeWriteFile(codeOutput, b); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Coded %d of %d questions into %s\n", len(results)-failed, len(results), codeOutput)
		return nil
	},
}

// loadJobs reads the jobs file and fills each job with the non-empty
// answers of its column.
func loadJobs(path string, ds *survey.Dataset) ([]coding.Job, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read jobs: %w", err)
	}
	var f jobsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse jobs: %w", err)
	}
	if len(f.Jobs) == 0 {
		return nil, errors.New("jobs file has no jobs")
	}
	jobs := make([]coding.Job, 0, len(f.Jobs))
	for _, js := range f.Jobs {
		if !ds.Has(js.Question) {
			return nil, fmt.Errorf("job %s: %w", js.Question, survey.ErrUnknownColumn)
		}
		if len(js.Codebook) == 0 {
			return nil, fmt.Errorf("job %s: empty codebook", js.Question)
		}
		var answers []string
		for row := 0; row < ds.Rows(); row++ {
			if v := strings.TrimSpace(ds.Value(js.Question, row)); v != "" {
				answers = append(answers, v)
			}
		}
		jobs = append(jobs, coding.Job{QuestionCode: js.Question, Prompt: js.Prompt, Answers: answers, Codebook: js.Codebook})
	}
	return jobs, nil
}

func init() {
	rootCmd.AddCommand(codeCmd)
	codeCmd.Flags().StringVar(&codeJobsFile, "jobs", "", "YAML file with jobs: [{question, prompt, codebook: [{code, description}]}]")
	codeCmd.Flags().StringVarP(&codeOutput, "output", "o", "", "write results JSON to file (default stdout)")
	codeCmd.Flags().BoolVar(&codeDryRun, "dry-run", false, "list jobs without calling the model")
}
