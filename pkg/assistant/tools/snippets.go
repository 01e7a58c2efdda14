package tools

// snippetTaskOrder fixes the lookup order so a description mentioning two
// tasks always resolves the same way.
var snippetTaskOrder = []string{"read file", "http request", "connect to database"}

// codeSnippets holds canned examples per language and task.
var codeSnippets = map[string]map[string]string{
	"python": {
		"read file": `# Read a file in Python
with open('filename.txt', 'r') as file:
    content = file.read()
    print(content)`,
		"http request": `# Make an HTTP request in Python
import requests

response = requests.get('https://api.example.com/data')
if response.status_code == 200:
    data = response.json()
    print(data)
else:
    print(f"Error: {response.status_code}")`,
		"connect to database": `# Connect to a database in Python
import sqlite3

conn = sqlite3.connect('example.db')
cursor = conn.cursor()

cursor.execute('''
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    email TEXT UNIQUE NOT NULL
)
''')

cursor.execute("INSERT INTO users (name, email) VALUES (?, ?)",
              ("John Doe", "john@example.com"))

conn.commit()
conn.close()`,
	},
	"javascript": {
		"read file": `// Read a file in JavaScript (Node.js)
const fs = require('fs');

async function readFile() {
  try {
    const data = await fs.promises.readFile('filename.txt', 'utf8');
    console.log(data);
  } catch (err) {
    console.error('Error reading file:', err);
  }
}`,
		"http request": `// Make an HTTP request in JavaScript
async function fetchData() {
  try {
    const response = await fetch('https://api.example.com/data');
    if (!response.ok) {
      throw new Error('HTTP error! Status: ' + response.status);
    }
    const data = await response.json();
    console.log(data);
  } catch (error) {
    console.error('Fetch error:', error);
  }
}`,
	},
	"java": {
		"read file": `// Read a file in Java
import java.io.BufferedReader;
import java.io.FileReader;
import java.io.IOException;

public class ReadFile {
    public static void main(String[] args) {
        try (BufferedReader reader = new BufferedReader(new FileReader("filename.txt"))) {
            String line;
            while ((line = reader.readLine()) != null) {
                System.out.println(line);
            }
        } catch (IOException e) {
            System.err.println("Error reading file: " + e.getMessage());
        }
    }
}`,
		"http request": `// Make an HTTP request in Java
import java.net.URI;
import java.net.http.HttpClient;
import java.net.http.HttpRequest;
import java.net.http.HttpResponse;
import java.net.http.HttpResponse.BodyHandlers;

public class HttpRequestExample {
    public static void main(String[] args) {
        try {
            HttpClient client = HttpClient.newHttpClient();
            HttpRequest request = HttpRequest.newBuilder()
                    .uri(URI.create("https://api.example.com/data"))
                    .GET()
                    .build();

            HttpResponse<String> response = client.send(request, BodyHandlers.ofString());

            System.out.println("Status code: " + response.statusCode());
            System.out.println("Response body: " + response.body());
        } catch (Exception e) {
            System.err.println("Error making HTTP request: " + e.getMessage());
        }
    }
}`,
	},
	"go": {
		"read file": `// Read a file in Go
package main

import (
	"fmt"
	"os"
)

func main() {
	content, err := os.ReadFile("filename.txt")
	if err != nil {
		fmt.Fprintln(os.Stderr, "error reading file:", err)
		return
	}
	fmt.Println(string(content))
}`,
		"http request": `// Make an HTTP request in Go
package main

import (
	"fmt"
	"io"
	"net/http"
)

func main() {
	resp, err := http.Get("https://api.example.com/data")
	if err != nil {
		fmt.Println("request failed:", err)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Println("read failed:", err)
		return
	}
	fmt.Println(resp.Status, string(body))
}`,
	},
}
