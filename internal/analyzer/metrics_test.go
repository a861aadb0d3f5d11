package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResume = `John Doe
Contact: john.doe@example.com | 555-123-4567

Summary
Backend engineer with 5 years of experience building cloud services.

Experience
Software Engineer, Acme Corp (2021 - 2024)
- Developed Python microservices handling 2M requests per day
- Improved API latency by 40% and reduced infrastructure cost by $50k
- Led a team of 4 engineers

Education
Bachelor's degree in Computer Science, State University (2019)

Skills
Python, Golang, SQL, Docker, Kubernetes, AWS
`

func TestCalculateMetrics(t *testing.T) {
	m := CalculateMetrics(sampleResume)

	assert.Greater(t, m.WordCount, 50)
	assert.Greater(t, m.LineCount, 10)
	assert.Equal(t, 1, m.EstimatedPages)

	require.NotEmpty(t, m.SectionsFound)
	assert.Contains(t, m.SectionsFound, "experience")
	assert.Contains(t, m.SectionsFound, "education")
	assert.Contains(t, m.SectionsFound, "skills")
	assert.Contains(t, m.SectionsFound, "contact")
	assert.Contains(t, m.SectionsFound, "summary")

	assert.True(t, m.HasBulletPoints)
	assert.True(t, m.HasNumbers)
	assert.True(t, m.HasEmail)
	assert.True(t, m.HasPhone)
}

func TestCalculateMetricsEmptyInput(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t\n"} {
		m := CalculateMetrics(text)
		assert.Zero(t, m.WordCount)
		assert.Empty(t, m.SectionsFound)
		assert.False(t, m.HasEmail)
		assert.False(t, m.HasPhone)
	}
}

func TestCalculateMetricsPageEstimate(t *testing.T) {
	// 500词一页，向上取整
	long := ""
	for i := 0; i < 750; i++ {
		long += "word "
	}
	m := CalculateMetrics(long)
	assert.Equal(t, 750, m.WordCount)
	assert.Equal(t, 2, m.EstimatedPages)
}
