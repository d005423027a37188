package infer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInferDate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		title string
		want  time.Time
	}{
		{"Spring 1995", time.Date(1995, time.March, 21, 0, 0, 0, 0, time.UTC)},
		{"Summer 1995", time.Date(1995, time.June, 21, 0, 0, 0, 0, time.UTC)},
		{"Fall 2001 Issue", time.Date(2001, time.September, 23, 0, 0, 0, 0, time.UTC)},
		{"Autumn 2001", time.Date(2001, time.September, 23, 0, 0, 0, 0, time.UTC)},
		{"Winter 1988", time.Date(1988, time.December, 21, 0, 0, 0, 0, time.UTC)},
		{"March 2004 Newsletter", time.Date(2004, time.March, 1, 0, 0, 0, 0, time.UTC)},
		{"Sept 2010", time.Date(2010, time.September, 1, 0, 0, 0, 0, time.UTC)},
		{"Spring/April 1999", time.Date(1999, time.April, 1, 0, 0, 0, 0, time.UTC)},
		{"Annual Report 1976", time.Date(1976, time.January, 1, 0, 0, 0, 0, time.UTC)},
		{"1995 and 2003 retrospective", time.Date(1995, time.January, 1, 0, 0, 0, 0, time.UTC)},
		{"Spring Issue", DefaultDate},
		{"Issue 12345", DefaultDate},
	}
	for _, tc := range cases {
		t.Run(tc.title, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, InferDate(tc.title))
		})
	}
}

func TestInferDateIsDeterministic(t *testing.T) {
	t.Parallel()

	first := InferDate("Summer 1995")
	for i := 0; i < 10; i++ {
		require.Equal(t, first, InferDate("Summer 1995"))
	}
}

func TestInfer(t *testing.T) {
	t.Parallel()

	id, date := Infer("Spring 1995")
	require.Equal(t, "spring-1995", id)
	require.Equal(t, time.Date(1995, time.March, 21, 0, 0, 0, 0, time.UTC), date)

	id, _ = Infer("The Jewish Vegetarian -- Online!")
	require.Equal(t, "the-jewish-vegetarian-online-1990", id)

	id, _ = Infer("Newsletter 2020 (Special Edition)")
	require.Equal(t, "newsletter-2020-special-edition-2020", id)
}

func TestBuildID(t *testing.T) {
	t.Parallel()

	require.Equal(t, "untitled-1990", BuildID("!!!", 1990))
	require.Equal(t, "2004", BuildID("2004", 2004))
	require.Equal(t, "foo-bar-2004", BuildID("  Foo   Bar ", 2004))
}

func TestSlugify(t *testing.T) {
	t.Parallel()

	require.Equal(t, "hello-world", Slugify("--Hello, World!--"))
	require.Equal(t, "", Slugify("   "))
	require.Equal(t, "a-b-c", Slugify("a_b.c"))
}
